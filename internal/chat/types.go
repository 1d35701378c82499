package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalIDPrefix marks client-generated message identifiers. Server ids never
// carry it.
const LocalIDPrefix = "local-"

// DeliveryState tracks where a message is in the send pipeline.
type DeliveryState string

const (
	Pending   DeliveryState = "pending"
	Confirmed DeliveryState = "confirmed"
	Failed    DeliveryState = "failed"
)

// Session is the authenticated identity used for every synchronization call.
type Session struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// Valid reports whether the session can be used for network calls.
func (s Session) Valid() bool {
	return s.UserID != "" && s.Token != ""
}

// User is an entry of the peer directory.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Conversation is a two-participant messaging context.
type Conversation struct {
	ID             string   `json:"id"`
	ParticipantIDs []string `json:"participantIds"`
}

// HasExactly reports whether the participant set equals the given ids,
// ignoring order and duplicates.
func (c Conversation) HasExactly(ids ...string) bool {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	got := make(map[string]struct{}, len(c.ParticipantIDs))
	for _, id := range c.ParticipantIDs {
		if _, ok := want[id]; !ok {
			return false
		}
		got[id] = struct{}{}
	}
	return len(got) == len(want)
}

// Message is a single chat message, either server-confirmed or local.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	SenderID       string        `json:"senderId"`
	Content        string        `json:"content"`
	CreatedAt      time.Time     `json:"createdAt"`
	DeliveryState  DeliveryState `json:"deliveryState,omitempty"`
}

// IsLocal reports whether the message still carries a client-generated id.
func (m Message) IsLocal() bool {
	return IsLocalID(m.ID)
}

// NewLocalID returns a fresh client-side message id.
func NewLocalID() string {
	return LocalIDPrefix + uuid.NewString()
}

// IsLocalID reports whether id was produced by NewLocalID.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}
