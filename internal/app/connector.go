package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/apperr"
	"github.com/matheus3301/parley/internal/bus"
	"github.com/matheus3301/parley/internal/chat"
	"github.com/matheus3301/parley/internal/chatsync"
	"github.com/matheus3301/parley/internal/realtime"
)

// Dialer opens realtime connections.
type Dialer interface {
	Connect(ctx context.Context, sess chat.Session) (*realtime.Conn, error)
}

// SessionSource supplies and revokes the current session.
type SessionSource interface {
	Session() (chat.Session, bool)
	Invalidate(reason string)
}

// Attacher is the synchronizer side of a realtime connection.
type Attacher interface {
	Attach(conn chatsync.Channel) error
	Detach()
}

// HealthReporter records realtime availability.
type HealthReporter interface {
	SetRealtime(up bool)
}

// Connector keeps one realtime connection open for the current session and
// hands it to the synchronizer. It connects on start and whenever a new
// session is stored, and drops the connection when the session is revoked.
type Connector struct {
	dialer Dialer
	auth   SessionSource
	sync   Attacher
	health HealthReporter
	bus    *bus.Bus
	logger *zap.Logger

	mu        sync.Mutex
	conn      *realtime.Conn
	unwatch   func()
	connectMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConnector creates a connector. Call Start to begin connecting.
func NewConnector(d Dialer, auth SessionSource, sync Attacher, health HealthReporter, b *bus.Bus, logger *zap.Logger) *Connector {
	return &Connector{
		dialer: d,
		auth:   auth,
		sync:   sync,
		health: health,
		bus:    b,
		logger: logger,
	}
}

// Start watches session events and connects in the background when a
// session is already present.
func (c *Connector) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)

	ch, unsub := c.bus.Subscribe("auth.", 16)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer unsub()
		for {
			select {
			case evt := <-ch:
				c.handle(evt)
			case <-c.ctx.Done():
				return
			}
		}
	}()

	if _, ok := c.auth.Session(); ok {
		c.goConnect()
	} else {
		c.logger.Info("no stored session, realtime connect deferred until login")
	}
}

func (c *Connector) handle(evt bus.Event) {
	switch evt.Kind {
	case bus.KindAuthSessionChanged:
		c.goConnect()
	case bus.KindAuthInvalidated:
		c.Disconnect()
	}
}

func (c *Connector) goConnect() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.Connect(c.ctx); err != nil {
			c.logger.Warn("realtime connect failed", zap.Error(err))
			c.bus.Emit(bus.KindChatError, err)
		}
	}()
}

// Connect replaces the current connection with a fresh one for the current
// session. A rejected credential revokes the session.
func (c *Connector) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	sess, ok := c.auth.Session()
	if !ok {
		return apperr.AuthRequired("realtime connect requires a session")
	}

	conn, err := c.dialer.Connect(ctx, sess)
	if err != nil {
		if apperr.Is(err, apperr.CodeUnauthenticated) {
			c.auth.Invalidate("realtime handshake rejected")
		}
		return err
	}

	c.swap(conn)
	if err := c.sync.Attach(conn); err != nil {
		c.swap(nil)
		return err
	}
	return nil
}

// Disconnect closes the current connection, if any.
func (c *Connector) Disconnect() {
	c.swap(nil)
}

// Conn returns the current connection or nil.
func (c *Connector) Conn() *realtime.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Stop closes the connection and waits for background work to finish.
func (c *Connector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.Disconnect()
	c.wg.Wait()
}

// swap installs conn as the current connection and closes the previous one.
func (c *Connector) swap(conn *realtime.Conn) {
	c.mu.Lock()
	prev, unwatch := c.conn, c.unwatch
	c.conn, c.unwatch = conn, nil
	if conn != nil {
		c.unwatch = conn.OnState(func(sc realtime.StateChange) {
			c.health.SetRealtime(sc.State == realtime.Connected)
		})
	}
	c.mu.Unlock()

	if prev != nil {
		if unwatch != nil {
			unwatch()
		}
		if conn == nil {
			c.sync.Detach()
		}
		prev.Disconnect()
	}
	c.health.SetRealtime(conn != nil && conn.State() == realtime.Connected)
}
