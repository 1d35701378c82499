package resolver

import (
	"context"
	"errors"
	"sync"

	"github.com/matheus3301/parley/internal/chat"
)

// ErrStale is returned for a selection that was superseded before it resolved.
var ErrStale = errors.New("selection superseded")

// Selector tracks the active peer selection. Generations are assigned by the
// caller, so the order selections reach the selector does not matter: a
// selection older than the latest one seen never cancels it, and results for
// anything but the latest live selection are reported as ErrStale.
type Selector struct {
	resolver *Resolver

	mu     sync.Mutex
	latest uint64
	live   bool
	cancel context.CancelFunc
}

// NewSelector wraps a resolver with selection tracking.
func NewSelector(r *Resolver) *Selector {
	return &Selector{resolver: r}
}

// Select resolves the conversation for peerID as selection gen. gen must grow
// with each new selection made by the caller.
func (s *Selector) Select(ctx context.Context, gen uint64, peerID string) (chat.Conversation, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if gen < s.latest {
		s.mu.Unlock()
		return chat.Conversation{}, ErrStale
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.latest = gen
	s.live = true
	s.cancel = cancel
	s.mu.Unlock()

	conv, err := s.resolver.Resolve(ctx, peerID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.latest || !s.live {
		return chat.Conversation{}, ErrStale
	}
	s.cancel = nil
	return conv, err
}

// Cancel abandons the active selection, if any. A later generation may still
// start a new one.
func (s *Selector) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.live = false
}
