package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/h2non/gock"
)

const webhookURL = "https://discord.com/api/webhooks/123456/test-token"

func newTestClient() *Client {
	return New(http.DefaultClient, webhookURL, "modqueue-relay-test/1.0")
}

func TestSend(t *testing.T) {
	defer gock.Off()

	gock.New("https://discord.com").
		Post("/api/webhooks/123456/test-token").
		MatchParam("wait", "true").
		Reply(200).
		JSON(map[string]string{"id": "9001"})

	id, err := newTestClient().Send(context.Background(), &Message{
		Embeds: []Embed{{Title: "Hello"}},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if diff := cmp.Diff("9001", id); diff != "" {
		t.Errorf("message id mismatch (-want +got):\n%s", diff)
	}
}

func TestSendRateLimited(t *testing.T) {
	defer gock.Off()

	gock.New("https://discord.com").
		Post("/api/webhooks/123456/test-token").
		Reply(429).
		JSON(map[string]any{"retry_after": 1.5})

	_, err := newTestClient().Send(context.Background(), &Message{Content: "hi"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestGet(t *testing.T) {
	defer gock.Off()

	gock.New("https://discord.com").
		Get("/api/webhooks/123456/test-token/messages/9001").
		Reply(200).
		JSON(map[string]any{
			"embeds": []map[string]any{{"title": "Hello", "color": 49620}},
		})

	msg, err := newTestClient().Get(context.Background(), "9001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := &Message{Embeds: []Embed{{Title: "Hello", Color: 49620}}}
	if diff := cmp.Diff(want, msg); diff != "" {
		t.Errorf("message mismatch (-want +got):\n%s", diff)
	}
}

func TestGetNotFound(t *testing.T) {
	defer gock.Off()

	gock.New("https://discord.com").
		Get("/api/webhooks/123456/test-token/messages/9001").
		Reply(404).
		JSON(map[string]any{"message": "Unknown Message", "code": 10008})

	_, err := newTestClient().Get(context.Background(), "9001")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEdit(t *testing.T) {
	defer gock.Off()

	gock.New("https://discord.com").
		Patch("/api/webhooks/123456/test-token/messages/9001").
		Reply(200).
		JSON(map[string]string{"id": "9001"})

	err := newTestClient().Edit(context.Background(), "9001", &Message{
		Embeds: []Embed{{Title: "Edited"}},
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
}

func TestDelete(t *testing.T) {
	defer gock.Off()

	gock.New("https://discord.com").
		Delete("/api/webhooks/123456/test-token/messages/9001").
		Reply(204)

	if err := newTestClient().Delete(context.Background(), "9001"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	defer gock.Off()

	gock.New("https://discord.com").
		Delete("/api/webhooks/123456/test-token/messages/9001").
		Reply(404)

	err := newTestClient().Delete(context.Background(), "9001")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServerErrorIsPlainError(t *testing.T) {
	defer gock.Off()

	gock.New("https://discord.com").
		Post("/api/webhooks/123456/test-token").
		Reply(500).
		BodyString("internal error")

	_, err := newTestClient().Send(context.Background(), &Message{Content: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected plain transport error, got %v", err)
	}
}
