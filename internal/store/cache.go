package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/parley/internal/chat"
)

const upsertEntry = `
	INSERT INTO cache_entries (conversation_id, saved_at) VALUES (?, ?)
	ON CONFLICT(conversation_id) DO UPDATE SET saved_at = excluded.saved_at`

// LoadEntry returns the cached list for a conversation, or nil if none exists.
func (db *DB) LoadEntry(conversationID string) (*CacheEntry, error) {
	var savedAt int64
	err := db.QueryRow(`SELECT saved_at FROM cache_entries WHERE conversation_id = ?`, conversationID).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT msg_id, sender_id, content, created_at, delivery_state
		FROM cached_messages
		WHERE conversation_id = ?
		ORDER BY position ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entry := &CacheEntry{ConversationID: conversationID, SavedAt: time.UnixMilli(savedAt)}
	for rows.Next() {
		var (
			m       chat.Message
			created int64
			state   string
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.Content, &created, &state); err != nil {
			return nil, err
		}
		m.ConversationID = conversationID
		m.CreatedAt = time.UnixMilli(created)
		m.DeliveryState = chat.DeliveryState(state)
		entry.Messages = append(entry.Messages, m)
	}
	return entry, rows.Err()
}

// SaveEntry overwrites the cached list for a conversation.
func (db *DB) SaveEntry(conversationID string, msgs []chat.Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(upsertEntry, conversationID, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM cached_messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	for i, m := range msgs {
		if err := insertMessage(tx, conversationID, i, m); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entry: %w", err)
	}
	return nil
}

// AppendMessages adds messages to the end of a conversation's cached list,
// creating the entry if needed. Ids already cached are left untouched.
func (db *DB) AppendMessages(conversationID string, msgs ...chat.Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(upsertEntry, conversationID, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}
	var last int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(position), -1) FROM cached_messages WHERE conversation_id = ?`, conversationID).Scan(&last); err != nil {
		return fmt.Errorf("last position: %w", err)
	}
	for i, m := range msgs {
		if err := insertMessage(tx, conversationID, last+1+i, m); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func insertMessage(tx *sql.Tx, conversationID string, position int, m chat.Message) error {
	state := m.DeliveryState
	if state == "" {
		state = chat.Confirmed
	}
	_, err := tx.Exec(`
		INSERT INTO cached_messages (conversation_id, msg_id, position, sender_id, content, created_at, delivery_state)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, msg_id) DO NOTHING`,
		conversationID, m.ID, position, m.SenderID, m.Content, m.CreatedAt.UnixMilli(), string(state))
	if err != nil {
		return fmt.Errorf("insert message %s: %w", m.ID, err)
	}
	return nil
}

// ListEntries summarizes every cached conversation, most recently saved first.
func (db *DB) ListEntries() ([]EntrySummary, error) {
	rows, err := db.Query(`
		SELECT e.conversation_id, e.saved_at, COUNT(m.msg_id)
		FROM cache_entries e
		LEFT JOIN cached_messages m ON m.conversation_id = e.conversation_id
		GROUP BY e.conversation_id
		ORDER BY e.saved_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []EntrySummary
	for rows.Next() {
		var (
			s       EntrySummary
			savedAt int64
		)
		if err := rows.Scan(&s.ConversationID, &savedAt, &s.MessageCount); err != nil {
			return nil, err
		}
		s.SavedAt = time.UnixMilli(savedAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteEntry removes a conversation's cache entry. It reports whether one existed.
func (db *DB) DeleteEntry(conversationID string) (bool, error) {
	res, err := db.Exec(`DELETE FROM cache_entries WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteAllEntries removes every cache entry and returns how many were dropped.
func (db *DB) DeleteAllEntries() (int64, error) {
	res, err := db.Exec(`DELETE FROM cache_entries`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
