package chatsync

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/bus"
	"github.com/matheus3301/parley/internal/chat"
	"github.com/matheus3301/parley/internal/realtime"
	"github.com/matheus3301/parley/internal/status"
	"github.com/matheus3301/parley/internal/store"
)

// ErrStopped is returned by operations issued after Stop.
var ErrStopped = errors.New("synchronizer stopped")

// API is the part of the HTTP API the synchronizer drives directly.
type API interface {
	ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error)
	CreateMessage(ctx context.Context, conversationID, content string) (chat.Message, error)
}

// Selector resolves the active peer selection, discarding superseded ones.
// gen is the selection generation assigned on the event loop.
type Selector interface {
	Select(ctx context.Context, gen uint64, peerID string) (chat.Conversation, error)
	Cancel()
}

// Resolver resolves a peer's conversation outside of selection tracking.
type Resolver interface {
	Resolve(ctx context.Context, peerID string) (chat.Conversation, error)
}

// Cache persists per-conversation message lists and resume state.
type Cache interface {
	LoadEntry(conversationID string) (*store.CacheEntry, error)
	SaveEntry(conversationID string, msgs []chat.Message) error
	AppendMessages(conversationID string, msgs ...chat.Message) error
	SetState(key, value string) error
	GetState(key string) (string, bool, error)
}

// SessionSource supplies the current session.
type SessionSource interface {
	Session() (chat.Session, bool)
}

// Channel is a live realtime connection.
type Channel interface {
	JoinRoom(conversationID string) error
	LeaveRoom(conversationID string) error
	Send(event string, payload any) error
	OnMessage(fn func(chat.Message)) func()
	OnState(fn func(realtime.StateChange)) func()
	State() realtime.State
}

// Snapshot is the presentation view of the active conversation.
type Snapshot struct {
	State          status.State
	PeerID         string
	ConversationID string
	Messages       []chat.Message
	Err            error
	Degraded       bool
	Connection     realtime.State
}

// Synchronizer merges cached, fetched and pushed messages for the active
// conversation and runs the optimistic send path. All of its state is owned
// by a single loop goroutine; public methods post closures to it.
type Synchronizer struct {
	api     API
	sel     Selector
	res     Resolver
	cache   Cache
	auth    SessionSource
	machine *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger

	ops      chan func()
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	// Loop-owned state.
	gen         uint64
	peerID      string
	conv        chat.Conversation
	timeline    *chat.Timeline
	lastErr     error
	degraded    bool
	conn        Channel
	connState   realtime.State
	connUnsub   []func()
	cancelFetch context.CancelFunc
	fetchSeq    uint64

	snapMu sync.RWMutex
	snap   Snapshot
}

// New creates a synchronizer. Call Start before issuing operations.
func New(api API, sel Selector, res Resolver, cache Cache, auth SessionSource, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		api:      api,
		sel:      sel,
		res:      res,
		cache:    cache,
		auth:     auth,
		machine:  machine,
		bus:      b,
		logger:   logger,
		ops:      make(chan func(), 64),
		quit:     make(chan struct{}),
		timeline: chat.NewTimeline(),
		snap:     Snapshot{State: machine.Current()},
	}
}

// Start runs the event loop and follows session changes and revocation.
func (s *Synchronizer) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case fn := <-s.ops:
				fn()
			case <-s.quit:
				return
			}
		}
	}()

	if s.bus != nil {
		ch, unsub := s.bus.Subscribe("auth.", 16)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer unsub()
			for {
				select {
				case evt := <-ch:
					s.post(func() { s.handleAuthEvent(evt) })
				case <-s.quit:
					return
				}
			}
		}()
	}
}

// Stop ends the event loop and aborts in-flight fetches. Safe to call more than once.
func (s *Synchronizer) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		close(s.quit)
	})
	s.wg.Wait()
}

// Snapshot returns the latest published view. It never blocks on the loop.
func (s *Synchronizer) Snapshot() Snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	snap := s.snap
	snap.Messages = append([]chat.Message(nil), s.snap.Messages...)
	return snap
}

// Attach binds a realtime connection, replacing any previous one. The active
// conversation's room is joined right away.
func (s *Synchronizer) Attach(conn Channel) error {
	return s.call(func() {
		s.detach()
		s.conn = conn
		s.connState = conn.State()
		s.connUnsub = []func(){
			conn.OnMessage(func(m chat.Message) {
				s.post(func() { s.applyPush(m) })
			}),
			conn.OnState(func(sc realtime.StateChange) {
				s.post(func() { s.applyConnState(sc) })
			}),
		}
		s.clearConnectionError()
		if s.conv.ID != "" {
			s.joinRoom(s.conv.ID)
			s.startFetch(s.conv.ID)
		}
		s.publish()
	})
}

// Detach unregisters from the current connection without closing it.
func (s *Synchronizer) Detach() {
	_ = s.call(func() {
		s.detach()
		s.publish()
	})
}

func (s *Synchronizer) detach() {
	for _, unsub := range s.connUnsub {
		unsub()
	}
	s.connUnsub = nil
	s.conn = nil
	s.connState = ""
}

// post queues fn on the loop. It reports false once the loop has stopped.
func (s *Synchronizer) post(fn func()) bool {
	select {
	case s.ops <- fn:
		return true
	case <-s.quit:
		return false
	}
}

// call runs fn on the loop and waits for it to finish.
func (s *Synchronizer) call(fn func()) error {
	done := make(chan struct{})
	if !s.post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-s.quit:
		return ErrStopped
	}
}

func (s *Synchronizer) transition(to status.State) {
	if s.machine.Current() == to && to != status.Resolving {
		return
	}
	if err := s.machine.Transition(to); err != nil {
		s.logger.Debug("state transition skipped", zap.Error(err))
	}
}

// publish stores a fresh snapshot and notifies the presentation layer.
func (s *Synchronizer) publish() {
	snap := Snapshot{
		State:          s.machine.Current(),
		PeerID:         s.peerID,
		ConversationID: s.conv.ID,
		Messages:       s.timeline.Messages(),
		Err:            s.lastErr,
		Degraded:       s.degraded,
		Connection:     s.connState,
	}
	s.snapMu.Lock()
	s.snap = snap
	s.snapMu.Unlock()
	s.bus.Emit(bus.KindChatUpdated, snap)
}

func (s *Synchronizer) reportError(err error) {
	s.bus.Emit(bus.KindChatError, err)
}

func (s *Synchronizer) joinRoom(conversationID string) {
	if s.conn == nil {
		return
	}
	if err := s.conn.JoinRoom(conversationID); err != nil {
		s.logger.Warn("join room failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}
}

func (s *Synchronizer) leaveRoom(conversationID string) {
	if s.conn == nil || conversationID == "" {
		return
	}
	if err := s.conn.LeaveRoom(conversationID); err != nil {
		s.logger.Warn("leave room failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}
}
