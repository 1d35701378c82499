package resolver

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/matheus3301/parley/internal/apperr"
	"github.com/matheus3301/parley/internal/chat"
)

// ConversationAPI is the part of the HTTP API the resolver needs.
type ConversationAPI interface {
	ListConversations(ctx context.Context) ([]chat.Conversation, error)
	CreateConversation(ctx context.Context, peerID string) (chat.Conversation, error)
}

// SessionSource supplies the current session.
type SessionSource interface {
	Session() (chat.Session, bool)
}

// Resolver maps a peer to the conversation shared with them, creating it if
// needed. Concurrent resolves for the same pair share a single request chain.
type Resolver struct {
	api   ConversationAPI
	auth  SessionSource
	log   *zap.Logger
	group singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context shared by every caller waiting on one lookup. It is
// cancelled when the last waiter leaves.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// New creates a resolver.
func New(api ConversationAPI, auth SessionSource, log *zap.Logger) *Resolver {
	return &Resolver{api: api, auth: auth, log: log, flights: map[string]*flight{}}
}

// Resolve returns the conversation between the session user and peerID.
//
// The shared lookup runs under a context owned by its waiters rather than by
// any single caller. A caller whose ctx ends gets ctx.Err() while the others
// keep waiting; once every waiter has left the lookup is aborted.
func (r *Resolver) Resolve(ctx context.Context, peerID string) (chat.Conversation, error) {
	sess, ok := r.auth.Session()
	if !ok {
		return chat.Conversation{}, apperr.AuthRequired("resolve requires a session")
	}
	if peerID == "" {
		return chat.Conversation{}, apperr.New(apperr.CodeConversationResolutionFailed, "empty peer id")
	}

	key := sess.UserID + "|" + peerID
	f := r.join(ctx, key)
	defer r.leave(key, f)
	ch := r.group.DoChan(key, func() (any, error) {
		return r.lookupOrCreate(f.ctx, sess.UserID, peerID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return chat.Conversation{}, res.Err
		}
		if res.Shared {
			r.log.Debug("resolve shared in-flight lookup", zap.String("peer_id", peerID))
		}
		return res.Val.(chat.Conversation), nil
	case <-ctx.Done():
		return chat.Conversation{}, ctx.Err()
	}
}

// join registers a waiter on the flight for key, starting a new flight when
// none is open. The flight keeps ctx's values but not its cancellation.
func (r *Resolver) join(ctx context.Context, key string) *flight {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.flights[key]
	if f == nil {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		r.flights[key] = f
	}
	f.waiters++
	return f
}

func (r *Resolver) leave(key string, f *flight) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if r.flights[key] == f {
		delete(r.flights, key)
		// The aborted lookup must not be handed to the next caller.
		r.group.Forget(key)
	}
}

func (r *Resolver) lookupOrCreate(ctx context.Context, selfID, peerID string) (chat.Conversation, error) {
	convs, err := r.api.ListConversations(ctx)
	if err != nil {
		return chat.Conversation{}, resolutionFailed("list conversations", err)
	}
	for _, c := range convs {
		if c.HasExactly(selfID, peerID) {
			r.log.Debug("conversation found", zap.String("peer_id", peerID), zap.String("conversation_id", c.ID))
			return c, nil
		}
	}

	// The server returns the existing conversation if another client won the race.
	c, err := r.api.CreateConversation(ctx, peerID)
	if err != nil {
		return chat.Conversation{}, resolutionFailed("create conversation", err)
	}
	r.log.Info("conversation created", zap.String("peer_id", peerID), zap.String("conversation_id", c.ID))
	return c, nil
}

func resolutionFailed(step string, err error) error {
	return apperr.Wrap(apperr.CodeConversationResolutionFailed, step, err)
}
