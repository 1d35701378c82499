package store

import (
	"database/sql"
	"errors"
	"time"
)

// Keys of the client_state table.
const (
	KeySession          = "session"
	KeyLastPeer         = "last_peer_id"
	KeyLastConversation = "last_conversation_id"
)

// SetState stores a client state value.
func (db *DB) SetState(key, value string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO client_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	return err
}

// GetState returns a client state value and whether it was set.
func (db *DB) GetState(key string) (string, bool, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM client_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// DeleteState removes a client state value.
func (db *DB) DeleteState(key string) error {
	_, err := db.Exec(`DELETE FROM client_state WHERE key = ?`, key)
	return err
}
