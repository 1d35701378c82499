package realtime

import "encoding/json"

// Wire event names.
const (
	EventSetup           = "setup"
	EventJoin            = "join"
	EventLeave           = "leave"
	EventNewMessage      = "new message"
	EventConnected       = "connected"
	EventMessageReceived = "message received"
	EventError           = "error"
)

// envelope is the frame format for every realtime event in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type setupPayload struct {
	UserID string `json:"userId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(data json.RawMessage) string {
	var p errorPayload
	if json.Unmarshal(data, &p) == nil && p.Message != "" {
		return p.Message
	}
	return string(data)
}
