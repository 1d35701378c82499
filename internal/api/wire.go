package api

import (
	"time"

	"github.com/matheus3301/parley/internal/chat"
)

type wireMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// toMessage maps a server message to a confirmed chat message. fallbackConv
// fills a missing conversation id, since history responses may omit it.
func (w wireMessage) toMessage(fallbackConv string) chat.Message {
	conv := w.ConversationID
	if conv == "" {
		conv = fallbackConv
	}
	return chat.Message{
		ID:             w.ID,
		ConversationID: conv,
		SenderID:       w.SenderID,
		Content:        w.Content,
		CreatedAt:      w.CreatedAt,
		DeliveryState:  chat.Confirmed,
	}
}
