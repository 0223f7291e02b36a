// Package model defines the domain types used across the application.
package model

import "time"

// ItemKind discriminates between the two kinds of moderation queue entries.
type ItemKind string

// Supported item kinds.
const (
	KindPost    ItemKind = "post"
	KindComment ItemKind = "comment"
)

// QueueItem is one entry of the moderation queue snapshot. It is read-only
// input for a single reconciliation pass; the engine never mutates it.
type QueueItem struct {
	ID        string
	Kind      ItemKind
	Title     string
	Body      string
	Author    string
	Domain    string
	IsSelf    bool
	Permalink string
	Removed   bool

	// Reasons holds the item's intrinsic report lines ("reporter: reason"),
	// mod reports first, then user reports.
	Reasons []string

	// Media candidates in decreasing preference: static thumbnail, video
	// scrubber frame, gallery images.
	ThumbnailURL      string
	VideoThumbnailURL string
	GalleryImageURLs  []string
}

// UpdateEvent records a filter or report notification for a queued item.
// Events are append-only; corrections arrive as additional events and are
// folded by concatenation, never by overwrite.
type UpdateEvent struct {
	ItemID    string
	Seq       int64
	Reason    string
	Removed   bool
	CreatedAt time.Time
}

// Key returns the two-part key identifying this event in the update log.
func (e UpdateEvent) Key() UpdateKey {
	return UpdateKey{ItemID: e.ItemID, Seq: e.Seq}
}

// UpdateKey identifies one update log entry for batch deletion. Seq is a
// store-assigned monotonic counter, so the pair is unique per event.
type UpdateKey struct {
	ItemID string
	Seq    int64
}
