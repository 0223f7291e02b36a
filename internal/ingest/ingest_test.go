package ingest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"modqueue_bot/internal/model"
	"modqueue_bot/internal/storage"
)

var ignoreEventMeta = cmpopts.IgnoreFields(model.UpdateEvent{}, "Seq", "CreatedAt")

func newTestIngestor(t *testing.T) (*Ingestor, *storage.SQLite) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, log), store
}

func TestItemFilteredAppendsRemovalEvent(t *testing.T) {
	ctx := context.Background()
	ing, store := newTestIngestor(t)

	if err := ing.ItemFiltered(ctx, model.KindPost, "abc", "banned phrase"); err != nil {
		t.Fatalf("item filtered: %v", err)
	}

	got, err := store.ListUpdates(ctx)
	if err != nil {
		t.Fatalf("list updates: %v", err)
	}
	want := []model.UpdateEvent{{ItemID: "abc", Reason: "AutoMod: banned phrase", Removed: true}}
	if diff := cmp.Diff(want, got, ignoreEventMeta); diff != "" {
		t.Errorf("update log mismatch (-want +got):\n%s", diff)
	}
}

func TestItemReportedAppendsEvent(t *testing.T) {
	ctx := context.Background()
	ing, store := newTestIngestor(t)

	if err := ing.ItemReported(ctx, model.KindComment, "def", "rudeness"); err != nil {
		t.Fatalf("item reported: %v", err)
	}

	got, err := store.ListUpdates(ctx)
	if err != nil {
		t.Fatalf("list updates: %v", err)
	}
	want := []model.UpdateEvent{{ItemID: "def", Reason: "Report: rudeness", Removed: false}}
	if diff := cmp.Diff(want, got, ignoreEventMeta); diff != "" {
		t.Errorf("update log mismatch (-want +got):\n%s", diff)
	}
}

func TestHandlerAcceptsNotification(t *testing.T) {
	ing, store := newTestIngestor(t)
	handler := ing.Handler()

	body := `{"type":"reported","kind":"post","item_id":"abc","reason":"spam"}`
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusAccepted, rec.Body)
	}

	got, err := store.ListUpdates(context.Background())
	if err != nil {
		t.Fatalf("list updates: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one event, got %d", len(got))
	}
}

func TestHandlerRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "nope"},
		{name: "unknown type", body: `{"type":"banned","kind":"post","item_id":"abc"}`},
		{name: "unknown kind", body: `{"type":"filtered","kind":"modmail","item_id":"abc"}`},
		{name: "missing item id", body: `{"type":"filtered","kind":"comment"}`},
	}

	ing, store := newTestIngestor(t)
	handler := ing.Handler()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}

	got, err := store.ListUpdates(context.Background())
	if err != nil {
		t.Fatalf("list updates: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty update log, got %v", got)
	}
}
