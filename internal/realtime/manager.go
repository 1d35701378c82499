package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/apperr"
	"github.com/matheus3301/parley/internal/chat"
)

// Manager opens realtime connections for a session.
type Manager struct {
	cfg    Config
	dialer *websocket.Dialer
	log    *zap.Logger
}

// NewManager creates a connection manager. Zero config values take defaults.
func NewManager(cfg Config, log *zap.Logger) *Manager {
	cfg.defaults()
	return &Manager{
		cfg:    cfg,
		dialer: cfg.dialer(),
		log:    log,
	}
}

// Connect tries each endpoint in order and returns the first connection whose
// handshake completes. A rejected credential stops the walk immediately.
func (m *Manager) Connect(ctx context.Context, sess chat.Session) (*Conn, error) {
	if sess.Token == "" {
		return nil, apperr.AuthRequired("realtime connect requires a session token")
	}
	if len(m.cfg.Endpoints) == 0 {
		return nil, apperr.New(apperr.CodeConnectionUnavailable, "no realtime endpoints configured")
	}

	var errs []error
	for _, endpoint := range m.cfg.Endpoints {
		attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
		ws, err := m.handshake(attemptCtx, endpoint, sess)
		cancel()
		if err == nil {
			m.log.Info("realtime connected", zap.String("endpoint", endpoint), zap.String("user_id", sess.UserID))
			return newConn(m, endpoint, sess, ws), nil
		}
		if apperr.Is(err, apperr.CodeUnauthenticated) {
			m.log.Warn("realtime handshake rejected", zap.String("endpoint", endpoint), zap.Error(err))
			return nil, err
		}
		m.log.Warn("realtime endpoint failed", zap.String("endpoint", endpoint), zap.Error(err))
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, apperr.Wrap(apperr.CodeConnectionUnavailable, "all realtime endpoints failed", errors.Join(errs...))
}

// handshake dials endpoint, announces the user and waits for the server's
// connected event. ctx must carry a deadline.
func (m *Manager) handshake(ctx context.Context, endpoint string, sess chat.Session) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+sess.Token)

	ws, resp, err := m.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, apperr.Wrap(apperr.CodeUnauthenticated, "realtime upgrade rejected", fmt.Errorf("HTTP %d", resp.StatusCode))
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	// Unblock reads if the caller gives up before the deadline.
	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(m.cfg.ConnectTimeout)
	}
	ws.SetWriteDeadline(deadline)
	ws.SetReadDeadline(deadline)

	if err := ws.WriteJSON(outbound{Event: EventSetup, Data: setupPayload{UserID: sess.UserID}}); err != nil {
		ws.Close()
		return nil, fmt.Errorf("send setup: %w", err)
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			ws.Close()
			if ctx.Err() != nil {
				return nil, fmt.Errorf("await connected: %w", ctx.Err())
			}
			return nil, fmt.Errorf("await connected: %w", err)
		}
		var env envelope
		if json.Unmarshal(data, &env) != nil {
			continue
		}
		switch env.Event {
		case EventConnected:
			if !stop() {
				return nil, fmt.Errorf("await connected: %w", ctx.Err())
			}
			ws.SetWriteDeadline(time.Time{})
			ws.SetReadDeadline(time.Time{})
			return ws, nil
		case EventError:
			ws.Close()
			return nil, apperr.Wrap(apperr.CodeUnauthenticated, "setup refused", errors.New(errorMessage(env.Data)))
		}
	}
}
