package chatsync

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/apperr"
	"github.com/matheus3301/parley/internal/auth"
	"github.com/matheus3301/parley/internal/bus"
	"github.com/matheus3301/parley/internal/chat"
	"github.com/matheus3301/parley/internal/realtime"
	"github.com/matheus3301/parley/internal/resolver"
	"github.com/matheus3301/parley/internal/status"
	"github.com/matheus3301/parley/internal/store"
)

// SelectConversation makes peerID the active peer. It returns once the
// conversation is resolved and the cached history is shown; the authoritative
// fetch continues in the background. A selection superseded by a newer one
// returns resolver.ErrStale and leaves the newer selection's state untouched.
func (s *Synchronizer) SelectConversation(ctx context.Context, peerID string) error {
	var gen uint64
	if err := s.call(func() { gen = s.beginSelect(peerID) }); err != nil {
		return err
	}

	conv, err := s.sel.Select(ctx, gen, peerID)

	// Only the loop decides whether this selection is still current.
	var result error
	callErr := s.call(func() {
		if gen != s.gen {
			result = resolver.ErrStale
			return
		}
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, resolver.ErrStale):
			s.abandonSelect()
			result = err
		case err != nil:
			s.failResolve(err)
			result = err
		default:
			s.adopt(conv)
		}
	})
	if callErr != nil {
		return callErr
	}
	return result
}

// Resume re-selects the peer that was active when the client last ran.
// It is a no-op when nothing was persisted.
func (s *Synchronizer) Resume(ctx context.Context) error {
	peerID, ok, err := s.cache.GetState(store.KeyLastPeer)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "read last peer", err)
	}
	if !ok || peerID == "" {
		return nil
	}
	s.logger.Info("resuming last conversation", zap.String("peer_id", peerID))
	return s.SelectConversation(ctx, peerID)
}

// beginSelect tears down the previous conversation and enters Resolving.
func (s *Synchronizer) beginSelect(peerID string) uint64 {
	s.gen++
	s.stopFetch()
	s.leaveRoom(s.conv.ID)
	s.timeline.Clear()
	s.conv = chat.Conversation{}
	s.peerID = peerID
	s.lastErr = nil
	s.degraded = false
	s.transition(status.Resolving)
	s.publish()
	return s.gen
}

func (s *Synchronizer) abandonSelect() {
	s.peerID = ""
	s.transition(status.Idle)
	s.publish()
}

// failResolve clears conversation-scoped state after a failed resolution.
func (s *Synchronizer) failResolve(err error) {
	s.logger.Warn("conversation resolution failed", zap.String("peer_id", s.peerID), zap.Error(err))
	s.timeline.Clear()
	s.conv = chat.Conversation{}
	s.lastErr = err
	s.transition(status.Error)
	s.reportError(err)
	s.publish()
}

// adopt makes conv the active conversation: cache first, room joined, then
// the history fetch. Adopting the already active conversation is a no-op, so
// the select and send paths may race to it.
func (s *Synchronizer) adopt(conv chat.Conversation) {
	if s.conv.ID == conv.ID {
		return
	}
	s.conv = conv
	if s.machine.Current() != status.Resolving {
		s.transition(status.Resolving)
	}
	s.transition(status.Loading)

	entry, err := s.cache.LoadEntry(conv.ID)
	if err != nil {
		s.logger.Warn("cache read failed", zap.String("conversation_id", conv.ID), zap.Error(err))
	} else if entry != nil {
		msgs := make([]chat.Message, len(entry.Messages))
		for i, m := range entry.Messages {
			m.DeliveryState = chat.Confirmed
			msgs[i] = m
		}
		s.timeline.Reset(msgs, chat.FromCache)
		s.logger.Debug("cache painted", zap.String("conversation_id", conv.ID), zap.Int("messages", len(msgs)))
	}

	// Join before the fetch returns so pushes sent meanwhile are not missed.
	s.joinRoom(conv.ID)
	if err := s.cache.SetState(store.KeyLastPeer, s.peerID); err != nil {
		s.logger.Warn("failed to persist last peer", zap.Error(err))
	}
	if err := s.cache.SetState(store.KeyLastConversation, conv.ID); err != nil {
		s.logger.Warn("failed to persist last conversation", zap.Error(err))
	}

	s.startFetch(conv.ID)
	s.publish()
}

// startFetch loads authoritative history on a worker goroutine. The result is
// applied only if the selection it was started under is still active and no
// newer fetch has replaced it.
func (s *Synchronizer) startFetch(conversationID string) {
	s.stopFetch()
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelFetch = cancel
	s.fetchSeq++
	gen, seq := s.gen, s.fetchSeq

	go func() {
		defer cancel()
		msgs, err := s.api.ListMessages(ctx, conversationID)
		s.post(func() { s.applyFetch(gen, seq, conversationID, msgs, err) })
	}()
}

func (s *Synchronizer) stopFetch() {
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
}

func (s *Synchronizer) applyFetch(gen, seq uint64, conversationID string, msgs []chat.Message, err error) {
	if gen != s.gen || s.conv.ID != conversationID {
		s.logger.Debug("discarding stale history", zap.String("conversation_id", conversationID))
		return
	}
	if seq != s.fetchSeq {
		s.logger.Debug("discarding superseded history", zap.String("conversation_id", conversationID))
		return
	}
	s.cancelFetch = nil
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Warn("history fetch failed", zap.String("conversation_id", conversationID), zap.Error(err))
		s.degraded = true
		s.lastErr = apperr.Wrap(apperr.CodeHistoryFetchFailed, "history fetch failed, showing cached messages", err)
		s.reportError(s.lastErr)
		s.publish()
		return
	}

	s.timeline.Supersede(msgs)
	if err := s.cache.SaveEntry(conversationID, s.timeline.Confirmed()); err != nil {
		s.logger.Warn("cache overwrite failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}
	s.degraded = false
	if apperr.Is(s.lastErr, apperr.CodeHistoryFetchFailed) {
		s.lastErr = nil
	}
	if s.clearAuthError() {
		s.transition(status.Resolving)
		s.transition(status.Loading)
	}
	if s.machine.Current() == status.Loading {
		s.transition(status.Live)
	}
	s.logger.Debug("history applied", zap.String("conversation_id", conversationID), zap.Int("messages", len(msgs)))
	s.publish()
}

// applyPush appends a pushed message to the active conversation. Pushes for
// other conversations and ids already shown are dropped.
func (s *Synchronizer) applyPush(m chat.Message) {
	if s.conv.ID == "" || m.ConversationID != s.conv.ID {
		s.logger.Debug("dropping push for inactive conversation", zap.String("conversation_id", m.ConversationID))
		return
	}
	if !s.timeline.Insert(m, chat.FromPush) {
		return
	}
	if err := s.cache.AppendMessages(m.ConversationID, m); err != nil {
		s.logger.Warn("cache append failed", zap.String("conversation_id", m.ConversationID), zap.Error(err))
	}
	s.publish()
}

func (s *Synchronizer) applyConnState(sc realtime.StateChange) {
	prev := s.connState
	s.connState = sc.State

	switch sc.State {
	case realtime.Lost:
		err := sc.Err
		if err == nil {
			err = apperr.New(apperr.CodeConnectionLost, "realtime connection lost")
		}
		s.lastErr = err
		s.reportError(err)
	case realtime.Connected:
		s.clearConnectionError()
		// Catch up on anything pushed while the channel was down.
		if prev != realtime.Connected && s.conv.ID != "" {
			s.startFetch(s.conv.ID)
		}
	}
	s.publish()
}

func (s *Synchronizer) clearConnectionError() {
	if apperr.Is(s.lastErr, apperr.CodeConnectionLost) {
		s.lastErr = nil
	}
}

func (s *Synchronizer) handleAuthEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindAuthInvalidated:
		s.handleAuthInvalidated(evt)
	case bus.KindAuthSessionChanged:
		s.handleSessionChanged()
	}
}

func (s *Synchronizer) handleAuthInvalidated(evt bus.Event) {
	reason := "session invalidated"
	if inv, ok := evt.Payload.(auth.Invalidation); ok && inv.Reason != "" {
		reason = inv.Reason
	}
	s.gen++
	s.stopFetch()
	s.sel.Cancel()
	s.lastErr = apperr.Unauthenticated(reason)
	s.transition(status.Error)
	s.reportError(s.lastErr)
	s.publish()
}

// handleSessionChanged leaves an authentication error once a valid session is
// back. The last peer is selected again under the new session.
func (s *Synchronizer) handleSessionChanged() {
	if !s.clearAuthError() {
		return
	}
	peerID := s.peerID
	if peerID == "" {
		s.transition(status.Idle)
		s.publish()
		return
	}
	s.logger.Info("session restored, selecting conversation again", zap.String("peer_id", peerID))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.SelectConversation(s.ctx, peerID); err != nil && !errors.Is(err, resolver.ErrStale) {
			s.logger.Debug("reselect after session change", zap.String("peer_id", peerID), zap.Error(err))
		}
	}()
}

// clearAuthError drops an authentication error shown in Error when a valid
// session is available. It reports whether it did.
func (s *Synchronizer) clearAuthError() bool {
	if s.machine.Current() != status.Error {
		return false
	}
	if !apperr.Is(s.lastErr, apperr.CodeUnauthenticated) && !apperr.Is(s.lastErr, apperr.CodeAuthRequired) {
		return false
	}
	if _, ok := s.auth.Session(); !ok {
		return false
	}
	s.lastErr = nil
	return true
}
