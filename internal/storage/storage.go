// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"modqueue_bot/internal/model"
)

// Storage is the interface for all persistence operations.
//
// The message index maps a queue item ID to the Discord message currently
// representing it. The update log is an append-only buffer of filter/report
// events keyed by (item ID, sequence number). Batch operations with empty
// inputs are no-ops.
type Storage interface {
	TrackedMessages(ctx context.Context) (map[string]string, error)
	MessageID(ctx context.Context, itemID string) (string, bool, error)
	PutMessages(ctx context.Context, pairs map[string]string) error
	DeleteMessages(ctx context.Context, itemIDs []string) error

	AppendUpdate(ctx context.Context, ev *model.UpdateEvent) error
	ListUpdates(ctx context.Context) ([]model.UpdateEvent, error)
	DeleteUpdates(ctx context.Context, keys []model.UpdateKey) error

	Close() error
}
