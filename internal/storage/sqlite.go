package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"modqueue_bot/internal/model"
	"modqueue_bot/migrations"
)

// timeLayout is used for both writing and reading timestamps, so parse
// errors on rows this store wrote itself cannot occur and are discarded.
const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// TrackedMessages returns the full message index as an itemID -> messageID map.
func (s *SQLite) TrackedMessages(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item_id, message_id FROM messages`)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	index := make(map[string]string)
	for rows.Next() {
		var itemID, messageID string
		if err := rows.Scan(&itemID, &messageID); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		index[itemID] = messageID
	}
	return index, rows.Err()
}

// MessageID returns the message ID tracked for one item, and whether one exists.
func (s *SQLite) MessageID(ctx context.Context, itemID string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT message_id FROM messages WHERE item_id = ?`, itemID,
	)
	var messageID string
	err := row.Scan(&messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("scan message id: %w", err)
	}
	return messageID, true, nil
}

// PutMessages upserts all given itemID -> messageID pairs in one transaction.
func (s *SQLite) PutMessages(ctx context.Context, pairs map[string]string) error {
	if len(pairs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(timeLayout)
	for itemID, messageID := range pairs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (item_id, message_id, created_at) VALUES (?, ?, ?)
			 ON CONFLICT(item_id) DO UPDATE SET message_id = excluded.message_id`,
			itemID, messageID, now,
		)
		if err != nil {
			return fmt.Errorf("upsert message %s: %w", itemID, err)
		}
	}
	return tx.Commit()
}

// DeleteMessages removes the index entries for the given item IDs.
func (s *SQLite) DeleteMessages(ctx context.Context, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(itemIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(itemIDs))
	for i, id := range itemIDs {
		args[i] = id
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE item_id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

// AppendUpdate inserts one update event and populates its Seq and CreatedAt.
// Existing entries are never modified.
func (s *SQLite) AppendUpdate(ctx context.Context, ev *model.UpdateEvent) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO updates (item_id, reason, removed, created_at) VALUES (?, ?, ?, ?)`,
		ev.ItemID, ev.Reason, boolToInt(ev.Removed), now,
	)
	if err != nil {
		return fmt.Errorf("insert update: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	ev.Seq = seq
	ev.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListUpdates returns all pending update events in insertion order.
func (s *SQLite) ListUpdates(ctx context.Context) ([]model.UpdateEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, item_id, reason, removed, created_at FROM updates ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("query updates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.UpdateEvent
	for rows.Next() {
		var ev model.UpdateEvent
		var removed int
		var created string
		if err := rows.Scan(&ev.Seq, &ev.ItemID, &ev.Reason, &removed, &created); err != nil {
			return nil, fmt.Errorf("scan update: %w", err)
		}
		ev.Removed = removed == 1
		ev.CreatedAt, _ = time.Parse(timeLayout, created)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// DeleteUpdates removes the given update log entries in one transaction.
func (s *SQLite) DeleteUpdates(ctx context.Context, keys []model.UpdateKey) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, k := range keys {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM updates WHERE item_id = ? AND seq = ?`, k.ItemID, k.Seq,
		)
		if err != nil {
			return fmt.Errorf("delete update %s:%d: %w", k.ItemID, k.Seq, err)
		}
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
