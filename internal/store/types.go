package store

import (
	"time"

	"github.com/matheus3301/parley/internal/chat"
)

// CacheEntry is the persisted message list of one conversation.
type CacheEntry struct {
	ConversationID string
	Messages       []chat.Message
	SavedAt        time.Time
}

// EntrySummary describes a cache entry without its messages.
type EntrySummary struct {
	ConversationID string    `json:"conversationId"`
	MessageCount   int       `json:"messageCount"`
	SavedAt        time.Time `json:"savedAt"`
}
