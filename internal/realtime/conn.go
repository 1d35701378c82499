package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/apperr"
	"github.com/matheus3301/parley/internal/chat"
)

var (
	ErrClosed       = errors.New("realtime connection closed")
	ErrNotConnected = errors.New("realtime connection not established")
)

// State is the lifecycle state of a connection.
type State string

const (
	Connected    State = "connected"
	Reconnecting State = "reconnecting"
	Lost         State = "lost"
	Closed       State = "closed"
)

// StateChange is delivered to state handlers. Err is set when the state is Lost.
type StateChange struct {
	State State
	Err   error
}

type handler[T any] struct {
	id int
	fn func(T)
}

// Conn is one live realtime channel bound to the endpoint that won the handshake.
type Conn struct {
	mgr      *Manager
	endpoint string
	session  chat.Session
	log      *zap.Logger

	mu     sync.Mutex
	ws     *websocket.Conn
	state  State
	rooms  map[string]struct{}
	closed bool

	// ctx is cancelled by Disconnect and bounds reconnect attempts.
	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	hmu       sync.Mutex
	nextID    int
	onMessage []handler[chat.Message]
	onState   []handler[StateChange]

	backoff *backoff
}

func newConn(m *Manager, endpoint string, sess chat.Session, ws *websocket.Conn) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		mgr:      m,
		endpoint: endpoint,
		session:  sess,
		log:      m.log.With(zap.String("endpoint", endpoint)),
		ws:       ws,
		state:    Connected,
		rooms:    make(map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
		backoff:  newBackoff(m.cfg),
	}
	go c.readLoop(ws)
	return c
}

// Endpoint returns the URL this connection is bound to.
func (c *Conn) Endpoint() string { return c.endpoint }

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnMessage registers a handler for every inbound pushed message, whatever
// its conversation. Handlers run on the read goroutine in arrival order and
// must not block.
func (c *Conn) OnMessage(fn func(chat.Message)) (unregister func()) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	id := c.nextID
	c.nextID++
	c.onMessage = append(c.onMessage, handler[chat.Message]{id: id, fn: fn})
	return c.unregister(id)
}

// OnState registers a handler for connection state changes.
func (c *Conn) OnState(fn func(StateChange)) (unregister func()) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	id := c.nextID
	c.nextID++
	c.onState = append(c.onState, handler[StateChange]{id: id, fn: fn})
	return c.unregister(id)
}

func (c *Conn) unregister(id int) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			c.hmu.Lock()
			defer c.hmu.Unlock()
			c.onMessage = removeHandler(c.onMessage, id)
			c.onState = removeHandler(c.onState, id)
		})
	}
}

func removeHandler[T any](hs []handler[T], id int) []handler[T] {
	out := hs[:0:0]
	for _, h := range hs {
		if h.id != id {
			out = append(out, h)
		}
	}
	return out
}

// JoinRoom subscribes to a conversation's push scope. Joining a room twice is
// a no-op. While reconnecting the join is deferred to the next handshake.
func (c *Conn) JoinRoom(conversationID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if _, ok := c.rooms[conversationID]; ok {
		c.mu.Unlock()
		return nil
	}
	c.rooms[conversationID] = struct{}{}
	c.mu.Unlock()

	if err := c.write(EventJoin, conversationID); err != nil && !errors.Is(err, ErrNotConnected) {
		return err
	}
	return nil
}

// LeaveRoom unsubscribes from a conversation. Leaving a room that was never
// joined is a no-op.
func (c *Conn) LeaveRoom(conversationID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if _, ok := c.rooms[conversationID]; !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.rooms, conversationID)
	c.mu.Unlock()

	if err := c.write(EventLeave, conversationID); err != nil && !errors.Is(err, ErrNotConnected) {
		return err
	}
	return nil
}

// Send publishes an event. Delivery is not acknowledged.
func (c *Conn) Send(event string, payload any) error {
	return c.write(event, payload)
}

// Disconnect closes the connection and drops every handler. Safe to call
// repeatedly and from any state.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = Closed
	ws := c.ws
	c.ws = nil
	c.cancel()
	c.mu.Unlock()

	c.hmu.Lock()
	states := c.onState
	c.onMessage = nil
	c.onState = nil
	c.hmu.Unlock()

	if ws != nil {
		c.writeMu.Lock()
		ws.SetWriteDeadline(time.Now().Add(time.Second))
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"))
		c.writeMu.Unlock()
		ws.Close()
	}
	c.log.Info("realtime disconnected")

	for _, h := range states {
		h.fn(StateChange{State: Closed})
	}
}

func (c *Conn) write(event string, payload any) error {
	c.mu.Lock()
	ws, closed := c.ws, c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if ws == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteJSON(outbound{Event: event, Data: payload})
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}
			c.log.Warn("realtime read failed", zap.Error(err))
			next, ok := c.reconnect()
			if !ok {
				return
			}
			ws = next
			continue
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Debug("dropping malformed frame", zap.Error(err))
			continue
		}
		c.dispatch(env)
	}
}

func (c *Conn) dispatch(env envelope) {
	switch env.Event {
	case EventMessageReceived:
		var m chat.Message
		if err := json.Unmarshal(env.Data, &m); err != nil || m.ID == "" {
			c.log.Debug("dropping malformed push", zap.Error(err))
			return
		}
		m.DeliveryState = chat.Confirmed

		c.hmu.Lock()
		hs := append([]handler[chat.Message](nil), c.onMessage...)
		c.hmu.Unlock()
		for _, h := range hs {
			h.fn(m)
		}
	case EventError:
		c.log.Warn("realtime server error", zap.String("message", errorMessage(env.Data)))
	}
}

// reconnect redials the bound endpoint with backoff and re-announces joined
// rooms. It returns false once attempts are exhausted or the connection is closed.
func (c *Conn) reconnect() (*websocket.Conn, bool) {
	c.mu.Lock()
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.mu.Unlock()
	if !c.setState(Reconnecting, nil) {
		return nil, false
	}

	for !c.backoff.exhausted() {
		delay := c.backoff.next()
		c.log.Info("realtime reconnecting", zap.Int("attempt", c.backoff.attempt), zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-c.ctx.Done():
			timer.Stop()
			return nil, false
		}

		ctx, cancel := context.WithTimeout(c.ctx, c.mgr.cfg.ConnectTimeout)
		ws, err := c.mgr.handshake(ctx, c.endpoint, c.session)
		cancel()
		if err != nil {
			if apperr.Is(err, apperr.CodeUnauthenticated) {
				c.setState(Lost, err)
				return nil, false
			}
			c.log.Warn("realtime reconnect attempt failed", zap.Error(err))
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			ws.Close()
			return nil, false
		}
		c.ws = ws
		rooms := make([]string, 0, len(c.rooms))
		for id := range c.rooms {
			rooms = append(rooms, id)
		}
		c.mu.Unlock()

		for _, id := range rooms {
			if err := c.write(EventJoin, id); err != nil {
				c.log.Warn("rejoin failed", zap.String("conversation_id", id), zap.Error(err))
			}
		}
		c.backoff.reset()
		c.setState(Connected, nil)
		return ws, true
	}

	c.setState(Lost, apperr.New(apperr.CodeConnectionLost, "realtime reconnect attempts exhausted"))
	return nil, false
}

// setState records and broadcasts a state change unless the connection has
// been closed, in which case it reports false.
func (c *Conn) setState(s State, err error) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.state = s
	c.mu.Unlock()

	c.hmu.Lock()
	hs := append([]handler[StateChange](nil), c.onState...)
	c.hmu.Unlock()
	for _, h := range hs {
		h.fn(StateChange{State: s, Err: err})
	}
	return true
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
