// Package engine implements the reconciliation pass that keeps the Discord
// channel in sync with the moderation queue.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"modqueue_bot/internal/discord"
	"modqueue_bot/internal/model"
	"modqueue_bot/internal/render"
	"modqueue_bot/internal/storage"
)

// QueueClient fetches the current moderation queue snapshot.
type QueueClient interface {
	FetchSnapshot(ctx context.Context, limit int) ([]model.QueueItem, error)
}

// ChannelClient is the outbound Discord webhook surface. Implementations
// return discord.ErrRateLimited on backpressure and discord.ErrNotFound when
// the target message no longer exists.
type ChannelClient interface {
	Send(ctx context.Context, msg *discord.Message) (string, error)
	Get(ctx context.Context, messageID string) (*discord.Message, error)
	Edit(ctx context.Context, messageID string, msg *discord.Message) error
	Delete(ctx context.Context, messageID string) error
}

// Engine reconciles the message index against queue snapshots. Passes must
// not run concurrently; the scheduler serializes invocations.
type Engine struct {
	store   storage.Storage
	queue   QueueClient
	channel ChannelClient
	log     *slog.Logger
	limit   int
}

// New creates an Engine that fetches snapshots of up to limit items.
func New(store storage.Storage, queue QueueClient, channel ChannelClient, limit int, log *slog.Logger) *Engine {
	return &Engine{
		store:   store,
		queue:   queue,
		channel: channel,
		log:     log,
		limit:   limit,
	}
}

// RunPass executes one reconciliation pass: post messages for newly queued
// items, delete messages for resolved items, and patch messages whose items
// accumulated update events. A rate-limit signal stops only the sub-phase it
// occurs in; the unfinished remainder is retried on the next pass. An error
// is returned only when the snapshot or stored state cannot be loaded at all.
func (e *Engine) RunPass(ctx context.Context) error {
	snapshot, err := e.queue.FetchSnapshot(ctx, e.limit)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	currentIDs := make(map[string]bool, len(snapshot))
	for _, item := range snapshot {
		currentIDs[item.ID] = true
	}

	tracked, err := e.store.TrackedMessages(ctx)
	if err != nil {
		return fmt.Errorf("load message index: %w", err)
	}

	updates, err := e.store.ListUpdates(ctx)
	if err != nil {
		return fmt.Errorf("load update log: %w", err)
	}

	// Updates referring to items no longer queued can never be applied;
	// they are discarded at commit.
	applicable := make(map[string][]model.UpdateEvent)
	var consumed []model.UpdateKey
	for _, u := range updates {
		if !currentIDs[u.ItemID] {
			e.log.Info("discarding orphaned update", "item_id", u.ItemID, "seq", u.Seq, "reason", u.Reason)
			consumed = append(consumed, u.Key())
			continue
		}
		applicable[u.ItemID] = append(applicable[u.ItemID], u)
	}

	staged := e.sendNewItems(ctx, snapshot, tracked, applicable, &consumed)
	resolved := e.deleteResolvedItems(ctx, tracked, currentIDs)
	e.patchPendingItems(ctx, snapshot, tracked, applicable, &consumed)

	e.commit(ctx, staged, resolved, consumed)
	return nil
}

// sendNewItems posts a message for every snapshot item without an index
// entry, folding the item's pending updates into the initial send. Returns
// the itemID -> messageID pairs to stage into the index.
func (e *Engine) sendNewItems(
	ctx context.Context,
	snapshot []model.QueueItem,
	tracked map[string]string,
	applicable map[string][]model.UpdateEvent,
	consumed *[]model.UpdateKey,
) map[string]string {
	staged := make(map[string]string)

	for _, item := range snapshot {
		if _, ok := tracked[item.ID]; ok {
			continue
		}
		// Listing pages can shift between cursor fetches and repeat an item.
		if _, ok := staged[item.ID]; ok {
			continue
		}

		pending := applicable[item.ID]
		messageID, err := e.channel.Send(ctx, render.Item(item, pending))
		if errors.Is(err, discord.ErrRateLimited) {
			e.log.Warn("rate limited, deferring remaining sends", "item_id", item.ID, "error", err)
			break
		}
		if err != nil {
			e.log.Error("send message", "item_id", item.ID, "kind", item.Kind, "error", err)
			continue
		}

		staged[item.ID] = messageID
		for _, u := range pending {
			*consumed = append(*consumed, u.Key())
		}
	}
	return staged
}

// deleteResolvedItems deletes the message of every tracked item that left the
// queue. A not-found response means the message is already gone and counts as
// success. Returns the item IDs whose index entries are to be removed.
func (e *Engine) deleteResolvedItems(
	ctx context.Context,
	tracked map[string]string,
	currentIDs map[string]bool,
) []string {
	var candidates []string
	for itemID := range tracked {
		if !currentIDs[itemID] {
			candidates = append(candidates, itemID)
		}
	}
	sort.Strings(candidates)

	var resolved []string
	for _, itemID := range candidates {
		err := e.channel.Delete(ctx, tracked[itemID])
		if errors.Is(err, discord.ErrRateLimited) {
			e.log.Warn("rate limited, deferring remaining deletes", "item_id", itemID, "error", err)
			break
		}
		if err != nil && !errors.Is(err, discord.ErrNotFound) {
			e.log.Error("delete message", "item_id", itemID, "message_id", tracked[itemID], "error", err)
			continue
		}
		resolved = append(resolved, itemID)
	}
	return resolved
}

// patchPendingItems folds accumulated updates into the messages of items that
// are both tracked and still queued. A missing message means the item was
// resolved externally: its updates are consumed without a patch and the
// message is not recreated.
func (e *Engine) patchPendingItems(
	ctx context.Context,
	snapshot []model.QueueItem,
	tracked map[string]string,
	applicable map[string][]model.UpdateEvent,
	consumed *[]model.UpdateKey,
) {
	for _, item := range snapshot {
		messageID, ok := tracked[item.ID]
		if !ok {
			continue
		}
		pending := applicable[item.ID]
		if len(pending) == 0 {
			continue
		}

		msg, err := e.channel.Get(ctx, messageID)
		if errors.Is(err, discord.ErrRateLimited) {
			e.log.Warn("rate limited, deferring remaining patches", "item_id", item.ID, "error", err)
			break
		}
		if errors.Is(err, discord.ErrNotFound) {
			e.log.Info("message gone, dropping updates", "item_id", item.ID, "message_id", messageID)
			for _, u := range pending {
				*consumed = append(*consumed, u.Key())
			}
			continue
		}
		if err != nil {
			e.log.Error("get message", "item_id", item.ID, "message_id", messageID, "error", err)
			continue
		}

		if render.ApplyUpdates(msg, pending) {
			err = e.channel.Edit(ctx, messageID, msg)
			if errors.Is(err, discord.ErrRateLimited) {
				e.log.Warn("rate limited, deferring remaining patches", "item_id", item.ID, "error", err)
				break
			}
			if err != nil {
				e.log.Error("edit message", "item_id", item.ID, "message_id", messageID, "error", err)
				continue
			}
		}

		for _, u := range pending {
			*consumed = append(*consumed, u.Key())
		}
	}
}

// commit persists the outcome of the completed remote operations. Each batch
// is independent; a failed batch is only logged, and the next pass converges
// the remainder.
func (e *Engine) commit(ctx context.Context, staged map[string]string, resolved []string, consumed []model.UpdateKey) {
	if err := e.store.PutMessages(ctx, staged); err != nil {
		e.log.Error("stage new messages", "count", len(staged), "error", err)
	}
	if err := e.store.DeleteMessages(ctx, resolved); err != nil {
		e.log.Error("remove resolved messages", "count", len(resolved), "error", err)
	}
	if err := e.store.DeleteUpdates(ctx, consumed); err != nil {
		e.log.Error("consume updates", "count", len(consumed), "error", err)
	}
}
