// Package discord implements a Discord webhook client with typed rate-limit
// and not-found results.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Sentinel results distinguished from ordinary transport errors.
var (
	// ErrRateLimited signals backpressure from Discord. Callers stop the
	// current batch of calls and retry on the next pass; it is not a failure.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound signals that the target message no longer exists.
	ErrNotFound = errors.New("message not found")
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Message is a webhook execution payload. Only the fields this system reads
// and writes are modeled.
type Message struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed is a Discord rich embed.
type Embed struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
	Color       int        `json:"color,omitempty"`
	Author      *Author    `json:"author,omitempty"`
	Thumbnail   *Thumbnail `json:"thumbnail,omitempty"`
	Fields      []Field    `json:"fields,omitempty"`
}

// Author is the embed author block.
type Author struct {
	Name string `json:"name"`
}

// Thumbnail is the embed thumbnail image.
type Thumbnail struct {
	URL string `json:"url"`
}

// Field is one name/value pair of an embed.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Client talks to a single Discord webhook.
type Client struct {
	http       HTTPClient
	webhookURL string
	userAgent  string
}

// New creates a Client for the given webhook URL.
func New(client HTTPClient, webhookURL, userAgent string) *Client {
	return &Client{
		http:       client,
		webhookURL: webhookURL,
		userAgent:  userAgent,
	}
}

// Send posts a new message through the webhook and returns its message ID.
func (c *Client) Send(ctx context.Context, msg *Message) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	// wait=true makes Discord return the created message instead of a 204.
	err := c.call(ctx, http.MethodPost, c.webhookURL+"?wait=true", msg, &created)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

// Get fetches a previously sent webhook message by ID.
func (c *Client) Get(ctx context.Context, messageID string) (*Message, error) {
	var msg Message
	err := c.call(ctx, http.MethodGet, c.messageURL(messageID), nil, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Edit replaces the content and embeds of a previously sent message.
func (c *Client) Edit(ctx context.Context, messageID string, msg *Message) error {
	return c.call(ctx, http.MethodPatch, c.messageURL(messageID), msg, nil)
}

// Delete removes a previously sent message. Returns ErrNotFound if the
// message is already gone.
func (c *Client) Delete(ctx context.Context, messageID string) error {
	return c.call(ctx, http.MethodDelete, c.messageURL(messageID), nil, nil)
}

// Announce sends a plain-content message, used for service notices.
func (c *Client) Announce(ctx context.Context, content string) error {
	_, err := c.Send(ctx, &Message{Content: content})
	return err
}

func (c *Client) messageURL(messageID string) string {
	return c.webhookURL + "/messages/" + messageID
}

func (c *Client) call(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s webhook: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		var backoff struct {
			RetryAfter float64 `json:"retry_after"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&backoff)
		return fmt.Errorf("retry after %.2fs: %w", backoff.RetryAfter, ErrRateLimited)
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, detail)
	}

	if out != nil {
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
