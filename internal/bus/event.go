package bus

import "time"

// Event kinds published by the synchronization core.
const (
	KindChatStateChanged   = "chat.state_changed"
	KindChatUpdated        = "chat.updated"
	KindChatError          = "chat.error"
	KindAuthSessionChanged = "auth.session_changed"
	KindAuthInvalidated    = "auth.invalidated"
	KindRealtimeState      = "realtime.state_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
