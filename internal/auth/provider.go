package auth

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/bus"
	"github.com/matheus3301/parley/internal/chat"
	"github.com/matheus3301/parley/internal/store"
)

// StateStore persists small client state values.
type StateStore interface {
	SetState(key, value string) error
	GetState(key string) (string, bool, error)
	DeleteState(key string) error
}

// Invalidation is the payload of auth.invalidated events.
type Invalidation struct {
	UserID string
	Reason string
}

// Provider holds the current session and signals when it changes or is revoked.
type Provider struct {
	mu      sync.RWMutex
	session chat.Session
	store   StateStore
	bus     *bus.Bus
	log     *zap.Logger
}

// NewProvider creates a provider with no session. Call Load to restore a
// persisted one.
func NewProvider(st StateStore, b *bus.Bus, log *zap.Logger) *Provider {
	return &Provider{store: st, bus: b, log: log}
}

// Session returns the current session and whether it is usable.
func (p *Provider) Session() (chat.Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session, p.session.Valid()
}

// Load restores the persisted session, if any.
func (p *Provider) Load() (bool, error) {
	if p.store == nil {
		return false, nil
	}
	raw, ok, err := p.store.GetState(store.KeySession)
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return false, nil
	}
	var s chat.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return false, fmt.Errorf("decode session: %w", err)
	}
	if !s.Valid() {
		return false, nil
	}

	p.mu.Lock()
	p.session = s
	p.mu.Unlock()
	p.log.Info("session restored", zap.String("user_id", s.UserID))
	return true, nil
}

// Set replaces the session wholesale and persists it.
func (p *Provider) Set(s chat.Session) error {
	if !s.Valid() {
		return fmt.Errorf("session requires both user id and token")
	}
	if p.store != nil {
		raw, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		if err := p.store.SetState(store.KeySession, string(raw)); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}

	p.mu.Lock()
	p.session = s
	p.mu.Unlock()

	p.log.Info("session set", zap.String("user_id", s.UserID))
	p.bus.Emit(bus.KindAuthSessionChanged, s.UserID)
	return nil
}

// Invalidate drops the session after the server rejected it. Repeated calls
// for an already empty session are no-ops.
func (p *Provider) Invalidate(reason string) {
	p.mu.Lock()
	prev := p.session
	p.session = chat.Session{}
	p.mu.Unlock()

	if !prev.Valid() {
		return
	}
	if p.store != nil {
		if err := p.store.DeleteState(store.KeySession); err != nil {
			p.log.Warn("failed to delete stored session", zap.Error(err))
		}
	}
	p.log.Warn("session invalidated", zap.String("user_id", prev.UserID), zap.String("reason", reason))
	p.bus.Emit(bus.KindAuthInvalidated, Invalidation{UserID: prev.UserID, Reason: reason})
}
