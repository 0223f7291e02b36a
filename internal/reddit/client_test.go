package reddit

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/h2non/gock"

	"modqueue_bot/internal/model"
)

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test-only fixture loading
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(data)
}

func mockToken() {
	gock.New("https://www.reddit.com").
		Post("/api/v1/access_token").
		Reply(200).
		JSON(map[string]any{"access_token": "tok-1", "expires_in": 3600})
}

func newTestAPIClient() *Client {
	creds := Credentials{ClientID: "cid", ClientSecret: "secret", RefreshToken: "refresh"}
	return NewClient(http.DefaultClient, creds, "testsub", "modqueue-relay-test/1.0")
}

func TestFetchSnapshot(t *testing.T) {
	defer gock.Off()
	mockToken()
	gock.New("https://oauth.reddit.com").
		Get("/r/testsub/about/modqueue").
		Reply(200).
		BodyString(loadFixture(t, "../../testdata/modqueue.json"))

	items, err := newTestAPIClient().FetchSnapshot(context.Background(), 1000)
	if err != nil {
		t.Fatalf("fetch snapshot: %v", err)
	}

	want := []model.QueueItem{
		{
			ID:           "p1a2b3",
			Kind:         model.KindPost,
			Title:        "Check out my new site",
			Author:       "spammer42",
			Domain:       "example.com",
			Permalink:    "/r/testsub/comments/p1a2b3/check_out_my_new_site/",
			Reasons:      []string{"mod_alice: spam", "2: It's targeted harassment"},
			ThumbnailURL: "https://preview.redd.it/small.jpg",
		},
		{
			ID:        "c9x8y7",
			Kind:      model.KindComment,
			Body:      "rude comment text",
			Author:    "grumpy_user",
			IsSelf:    true,
			Permalink: "/r/testsub/comments/p1a2b3/check_out_my_new_site/c9x8y7/",
			Removed:   true,
			Reasons:   []string{"1: rudeness"},
		},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchSnapshotPaginates(t *testing.T) {
	defer gock.Off()
	mockToken()

	gock.New("https://oauth.reddit.com").
		Get("/r/testsub/about/modqueue").
		Reply(200).
		JSON(map[string]any{"data": map[string]any{
			"after": "t3_aaa",
			"children": []map[string]any{
				{"kind": "t3", "data": map[string]any{"id": "aaa", "title": "one", "author": "u1", "is_self": true}},
			},
		}})
	gock.New("https://oauth.reddit.com").
		Get("/r/testsub/about/modqueue").
		MatchParam("after", "t3_aaa").
		Reply(200).
		JSON(map[string]any{"data": map[string]any{
			"after": nil,
			"children": []map[string]any{
				{"kind": "t3", "data": map[string]any{"id": "bbb", "title": "two", "author": "u2", "is_self": true}},
			},
		}})

	items, err := newTestAPIClient().FetchSnapshot(context.Background(), 1000)
	if err != nil {
		t.Fatalf("fetch snapshot: %v", err)
	}

	var ids []string
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	if diff := cmp.Diff([]string{"aaa", "bbb"}, ids); diff != "" {
		t.Errorf("paginated ids mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchSnapshotRespectsLimit(t *testing.T) {
	defer gock.Off()
	mockToken()

	gock.New("https://oauth.reddit.com").
		Get("/r/testsub/about/modqueue").
		MatchParam("limit", "1").
		Reply(200).
		JSON(map[string]any{"data": map[string]any{
			"after": "t3_aaa",
			"children": []map[string]any{
				{"kind": "t3", "data": map[string]any{"id": "aaa", "title": "one", "author": "u1", "is_self": true}},
			},
		}})

	items, err := newTestAPIClient().FetchSnapshot(context.Background(), 1)
	if err != nil {
		t.Fatalf("fetch snapshot: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}
}

func TestTokenIsCached(t *testing.T) {
	defer gock.Off()
	mockToken() // single token grant for two snapshot fetches

	for range 2 {
		gock.New("https://oauth.reddit.com").
			Get("/r/testsub/about/modqueue").
			Reply(200).
			JSON(map[string]any{"data": map[string]any{"after": nil, "children": []any{}}})
	}

	client := newTestAPIClient()
	for i := range 2 {
		if _, err := client.FetchSnapshot(context.Background(), 10); err != nil {
			t.Fatalf("fetch %d: %v", i+1, err)
		}
	}

	if gock.IsPending() {
		t.Error("expected all mocks consumed, token grant not reused")
	}
}

func TestTokenGrantFailure(t *testing.T) {
	defer gock.Off()
	gock.New("https://www.reddit.com").
		Post("/api/v1/access_token").
		Reply(401).
		BodyString("unauthorized")

	_, err := newTestAPIClient().FetchSnapshot(context.Background(), 10)
	if err == nil {
		t.Fatal("expected error for rejected token grant")
	}
}
