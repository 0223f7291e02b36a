// Package reddit fetches moderation queue snapshots, either through the
// OAuth API or through a private modqueue RSS feed.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"modqueue_bot/internal/model"
)

const (
	tokenURL = "https://www.reddit.com/api/v1/access_token"
	apiBase  = "https://oauth.reddit.com"

	// Reddit caps listing pages at 100 entries; larger snapshots page
	// through the `after` cursor.
	pageSize = 100
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Credentials holds the OAuth refresh-token grant inputs.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Client fetches modqueue snapshots through the Reddit OAuth API.
type Client struct {
	http      HTTPClient
	creds     Credentials
	subreddit string
	userAgent string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates an API client for the given subreddit.
func NewClient(client HTTPClient, creds Credentials, subreddit, userAgent string) *Client {
	return &Client{
		http:      client,
		creds:     creds,
		subreddit: subreddit,
		userAgent: userAgent,
	}
}

// FetchSnapshot returns up to limit items currently in the moderation queue,
// in listing order, covering both posts and comments.
func (c *Client) FetchSnapshot(ctx context.Context, limit int) ([]model.QueueItem, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire token: %w", err)
	}

	var items []model.QueueItem
	after := ""
	for len(items) < limit {
		page, next, err := c.fetchPage(ctx, token, after, min(pageSize, limit-len(items)))
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
		if next == "" || len(page) == 0 {
			break
		}
		after = next
	}
	return items, nil
}

func (c *Client) fetchPage(ctx context.Context, token, after string, count int) ([]model.QueueItem, string, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(count))
	params.Set("raw_json", "1")
	if after != "" {
		params.Set("after", after)
	}
	endpoint := fmt.Sprintf("%s/r/%s/about/modqueue?%s", apiBase, c.subreddit, params.Encode())

	var page listing
	err := c.withBackoff(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("server status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return json.NewDecoder(io.LimitReader(resp.Body, 10*1024*1024)).Decode(&page)
	})
	if err != nil {
		return nil, "", fmt.Errorf("fetch modqueue page: %w", err)
	}

	items := make([]model.QueueItem, 0, len(page.Data.Children))
	for _, child := range page.Data.Children {
		item, err := child.toQueueItem()
		if err != nil {
			return nil, "", fmt.Errorf("decode %s child: %w", child.Kind, err)
		}
		items = append(items, item)
	}
	return items, page.Data.After, nil
}

// token returns a valid access token, refreshing it when expired.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.creds.RefreshToken)

	var grant struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	err := c.withBackoff(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("server status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&grant)
	})
	if err != nil {
		return "", err
	}
	if grant.AccessToken == "" {
		return "", fmt.Errorf("empty access token in grant response")
	}

	c.accessToken = grant.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(grant.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

func (c *Client) withBackoff(ctx context.Context, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))
	return retry.Do(ctx, backoff, fn)
}
