package cache

import (
	"time"

	"github.com/mcostalima/trill/internal/store"
)

// UpsertChat inserts or updates a cached chat record.
func (db *DB) UpsertChat(c *store.Chat) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO chats (id, title, timestamp, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			timestamp = MAX(chats.timestamp, excluded.timestamp),
			updated_at = excluded.updated_at`,
		c.ID, c.Title, c.Timestamp, now)
	return err
}

// ListChats returns cached chats sorted by timestamp descending.
func (db *DB) ListChats(limit int) ([]store.Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, title, timestamp
		FROM chats
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []store.Chat
	for rows.Next() {
		var c store.Chat
		if err := rows.Scan(&c.ID, &c.Title, &c.Timestamp); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// DeleteChat removes a chat and its cached messages.
func (db *DB) DeleteChat(chatID string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM messages WHERE chat_id = ?`, chatID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM chats WHERE id = ?`, chatID); err != nil {
		return err
	}
	return tx.Commit()
}
