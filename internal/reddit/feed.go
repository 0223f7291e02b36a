package reddit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"modqueue_bot/internal/model"
)

// FeedClient fetches modqueue snapshots from a private modqueue RSS feed.
// It is the credential-less alternative to the OAuth API: feed entries carry
// no report metadata, so intrinsic reasons are empty and the reason block is
// supplied entirely by the update log.
type FeedClient struct {
	http      HTTPClient
	feedURL   string
	userAgent string
}

// NewFeedClient creates a FeedClient for the given private feed URL.
func NewFeedClient(client HTTPClient, feedURL, userAgent string) *FeedClient {
	return &FeedClient{
		http:      client,
		feedURL:   feedURL,
		userAgent: userAgent,
	}
}

// FetchSnapshot downloads and parses the feed, returning up to limit items
// in feed order.
func (f *FeedClient) FetchSnapshot(ctx context.Context, limit int) ([]model.QueueItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var items []model.QueueItem
	for _, entry := range feed.Items {
		if len(items) >= limit {
			break
		}
		item, ok := entryToQueueItem(entry)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// entryToQueueItem maps one feed entry to a queue item. Entry IDs carry the
// thing fullname ("t3_abc123" for posts, "t1_abc123" for comments).
func entryToQueueItem(entry *gofeed.Item) (model.QueueItem, bool) {
	kindPrefix, id, ok := strings.Cut(entryID(entry), "_")
	if !ok || id == "" {
		return model.QueueItem{}, false
	}

	body := entry.Description
	if body == "" {
		body = entry.Content
	}
	item := model.QueueItem{
		ID:        id,
		Title:     entry.Title,
		Body:      body,
		Author:    feedAuthor(entry),
		Permalink: strings.TrimPrefix(entry.Link, "https://www.reddit.com"),
	}

	switch kindPrefix {
	case kindPost:
		item.Kind = model.KindPost
		item.IsSelf = true
	case kindComment:
		item.Kind = model.KindComment
		item.IsSelf = true
	default:
		return model.QueueItem{}, false
	}
	return item, true
}

func entryID(entry *gofeed.Item) string {
	if entry.GUID != "" {
		return entry.GUID
	}
	return entry.Link
}

func feedAuthor(entry *gofeed.Item) string {
	if entry.Author == nil {
		return ""
	}
	return strings.TrimPrefix(entry.Author.Name, "/u/")
}
