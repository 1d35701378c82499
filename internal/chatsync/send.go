package chatsync

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/apperr"
	"github.com/matheus3301/parley/internal/chat"
	"github.com/matheus3301/parley/internal/realtime"
	"github.com/matheus3301/parley/internal/resolver"
)

// ErrNotResendable is returned by Resend for ids that are not failed messages
// of the active conversation.
var ErrNotResendable = errors.New("message is not a failed local message")

// Send posts text to the active conversation. A pending copy is shown before
// any network call; on success it is replaced in place by the server's
// message, on failure it stays visible as failed. Blank text is ignored.
func (s *Synchronizer) Send(ctx context.Context, text string) (chat.Message, error) {
	if strings.TrimSpace(text) == "" {
		return chat.Message{}, nil
	}
	sess, ok := s.auth.Session()
	if !ok {
		return chat.Message{}, apperr.AuthRequired("send requires a session")
	}

	var convID, peerID string
	var gen uint64
	if err := s.call(func() { convID, peerID, gen = s.conv.ID, s.peerID, s.gen }); err != nil {
		return chat.Message{}, err
	}

	if convID == "" {
		if peerID == "" {
			return chat.Message{}, apperr.New(apperr.CodeConversationResolutionFailed, "no peer selected")
		}
		// Shares the in-flight lookup when a selection for the same peer is pending.
		conv, err := s.res.Resolve(ctx, peerID)
		if err != nil {
			return chat.Message{}, err
		}
		stale := false
		if err := s.call(func() {
			if gen != s.gen {
				stale = true
				return
			}
			s.adopt(conv)
		}); err != nil {
			return chat.Message{}, err
		}
		if stale {
			return chat.Message{}, resolver.ErrStale
		}
		convID = conv.ID
	}

	local := chat.Message{
		ID:             chat.NewLocalID(),
		ConversationID: convID,
		SenderID:       sess.UserID,
		Content:        text,
		CreatedAt:      time.Now(),
		DeliveryState:  chat.Pending,
	}
	appended := false
	if err := s.call(func() {
		if s.conv.ID != convID {
			return
		}
		appended = s.timeline.Insert(local, chat.FromSend)
		s.publish()
	}); err != nil {
		return chat.Message{}, err
	}
	if !appended {
		return chat.Message{}, resolver.ErrStale
	}
	return s.deliver(ctx, local)
}

// Resend retries a failed message. The entry flips back to pending in place.
func (s *Synchronizer) Resend(ctx context.Context, localID string) (chat.Message, error) {
	if _, ok := s.auth.Session(); !ok {
		return chat.Message{}, apperr.AuthRequired("send requires a session")
	}

	var msg chat.Message
	found := false
	if err := s.call(func() {
		m, ok := s.timeline.Get(localID)
		if !ok || m.DeliveryState != chat.Failed {
			return
		}
		msg, found = s.timeline.SetState(localID, chat.Pending)
		s.publish()
	}); err != nil {
		return chat.Message{}, err
	}
	if !found {
		return chat.Message{}, ErrNotResendable
	}
	return s.deliver(ctx, msg)
}

// deliver creates the message on the server and reconciles the local entry.
func (s *Synchronizer) deliver(ctx context.Context, local chat.Message) (chat.Message, error) {
	confirmed, err := s.api.CreateMessage(ctx, local.ConversationID, local.Content)
	if err != nil {
		s.logger.Warn("send failed",
			zap.String("conversation_id", local.ConversationID),
			zap.String("local_id", local.ID),
			zap.Error(err),
		)
		failed := local
		failed.DeliveryState = chat.Failed
		_ = s.call(func() {
			if m, ok := s.timeline.SetState(local.ID, chat.Failed); ok {
				failed = m
				s.publish()
			}
		})
		serr := apperr.Wrap(apperr.CodeSendFailed, "message not delivered", err)
		s.reportError(serr)
		return failed, serr
	}
	if confirmed.ConversationID == "" {
		confirmed.ConversationID = local.ConversationID
	}
	confirmed.DeliveryState = chat.Confirmed

	var conn Channel
	_ = s.call(func() {
		if s.conv.ID == local.ConversationID {
			s.timeline.Confirm(local.ID, confirmed)
			s.publish()
		}
		if err := s.cache.AppendMessages(confirmed.ConversationID, confirmed); err != nil {
			s.logger.Warn("cache append failed", zap.String("conversation_id", confirmed.ConversationID), zap.Error(err))
		}
		conn = s.conn
	})

	if conn != nil {
		if err := conn.Send(realtime.EventNewMessage, confirmed); err != nil {
			s.logger.Warn("realtime announce failed", zap.String("msg_id", confirmed.ID), zap.Error(err))
		}
	}
	s.logger.Info("message sent",
		zap.String("conversation_id", confirmed.ConversationID),
		zap.String("local_id", local.ID),
		zap.String("msg_id", confirmed.ID),
	)
	return confirmed, nil
}
