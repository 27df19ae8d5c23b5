package cache

import (
	"encoding/json"
	"time"

	"github.com/mcostalima/trill/internal/store"
	"github.com/mcostalima/trill/internal/wire"
)

// UpsertMessage inserts or updates a cached message (idempotent on chat_id + msg_id).
func (db *DB) UpsertMessage(chatID string, m *store.Message) error {
	content, err := json.Marshal(m.Content)
	if err != nil {
		return err
	}
	files := ""
	if len(m.UploadFiles) > 0 {
		raw, err := json.Marshal(m.UploadFiles)
		if err != nil {
			return err
		}
		files = string(raw)
	}

	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		INSERT INTO messages (chat_id, msg_id, role, content, timestamp, upload_files, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, msg_id) DO UPDATE SET
			role = excluded.role,
			content = excluded.content,
			timestamp = excluded.timestamp,
			upload_files = excluded.upload_files`,
		chatID, m.ID, string(m.Role), string(content), m.Timestamp, files, now)
	return err
}

// ListMessages returns cached messages for a chat in timestamp ascending order.
func (db *DB) ListMessages(chatID string, limit int) ([]store.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT msg_id, role, content, timestamp, upload_files
		FROM messages
		WHERE chat_id = ?
		ORDER BY timestamp ASC
		LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []store.Message
	for rows.Next() {
		var (
			m       store.Message
			role    string
			content string
			files   string
		)
		if err := rows.Scan(&m.ID, &role, &content, &m.Timestamp, &files); err != nil {
			return nil, err
		}
		m.Role = wire.Role(role)
		if content != "" {
			if err := json.Unmarshal([]byte(content), &m.Content); err != nil {
				return nil, err
			}
		}
		if files != "" {
			if err := json.Unmarshal([]byte(files), &m.UploadFiles); err != nil {
				return nil, err
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
