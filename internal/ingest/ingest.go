// Package ingest translates filter and report notifications into update log
// entries, one entry per notification.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"modqueue_bot/internal/model"
	"modqueue_bot/internal/storage"
)

// Notification types accepted by the HTTP surface.
const (
	TypeFiltered = "filtered"
	TypeReported = "reported"
)

// Ingestor appends update events for incoming moderation notifications.
type Ingestor struct {
	store storage.Storage
	log   *slog.Logger
}

// New creates an Ingestor backed by the given store.
func New(store storage.Storage, log *slog.Logger) *Ingestor {
	return &Ingestor{store: store, log: log}
}

// ItemFiltered records an auto-filter notification. Filtered items are
// flagged for removal.
func (i *Ingestor) ItemFiltered(ctx context.Context, kind model.ItemKind, itemID, reason string) error {
	return i.append(ctx, kind, itemID, "AutoMod: "+reason, true)
}

// ItemReported records a user-report notification.
func (i *Ingestor) ItemReported(ctx context.Context, kind model.ItemKind, itemID, reason string) error {
	return i.append(ctx, kind, itemID, "Report: "+reason, false)
}

func (i *Ingestor) append(ctx context.Context, kind model.ItemKind, itemID, reason string, removed bool) error {
	ev := model.UpdateEvent{
		ItemID:  itemID,
		Reason:  reason,
		Removed: removed,
	}
	if err := i.store.AppendUpdate(ctx, &ev); err != nil {
		return fmt.Errorf("append update: %w", err)
	}
	i.log.Debug("update recorded", "item_id", itemID, "kind", kind, "seq", ev.Seq, "removed", removed)
	return nil
}

type notification struct {
	Type   string `json:"type"`
	Kind   string `json:"kind"`
	ItemID string `json:"item_id"`
	Reason string `json:"reason"`
}

func (n notification) validate() error {
	if n.Type != TypeFiltered && n.Type != TypeReported {
		return fmt.Errorf("unknown type %q", n.Type)
	}
	if k := model.ItemKind(n.Kind); k != model.KindPost && k != model.KindComment {
		return fmt.Errorf("unknown kind %q", n.Kind)
	}
	if n.ItemID == "" {
		return fmt.Errorf("item_id is required")
	}
	return nil
}

// Handler returns the HTTP surface receiving notifications: POST /events with
// a JSON body {"type","kind","item_id","reason"}.
func (i *Ingestor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /events", i.handleEvent)
	return mux
}

func (i *Ingestor) handleEvent(w http.ResponseWriter, r *http.Request) {
	var n notification
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&n); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := n.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var err error
	if n.Type == TypeFiltered {
		err = i.ItemFiltered(r.Context(), model.ItemKind(n.Kind), n.ItemID, n.Reason)
	} else {
		err = i.ItemReported(r.Context(), model.ItemKind(n.Kind), n.ItemID, n.Reason)
	}
	if err != nil {
		i.log.Error("record notification", "item_id", n.ItemID, "type", n.Type, "error", err)
		http.Error(w, "failed to record event", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
