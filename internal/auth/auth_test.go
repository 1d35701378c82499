package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/bus"
	"github.com/matheus3301/parley/internal/chat"
	"github.com/matheus3301/parley/internal/store"
)

func signedToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		UserID:   sub,
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func testStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestSessionFromTokenReadsSubject(t *testing.T) {
	tok := signedToken(t, "u-1", time.Now().Add(time.Hour))
	s, err := SessionFromToken("Bearer "+tok, "")
	if err != nil {
		t.Fatalf("SessionFromToken() error = %v", err)
	}
	if s.UserID != "u-1" || s.Token != tok {
		t.Errorf("session = %+v, want user u-1 with the raw token", s)
	}
}

func TestSessionFromTokenOverride(t *testing.T) {
	s, err := SessionFromToken("opaque-token", "u-9")
	if err != nil {
		t.Fatalf("SessionFromToken() error = %v", err)
	}
	if s.UserID != "u-9" || s.Token != "opaque-token" {
		t.Errorf("session = %+v", s)
	}
}

func TestSessionFromTokenRejects(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty", "  "},
		{"garbage", "not-a-jwt"},
		{"expired", signedToken(t, "u-1", time.Now().Add(-time.Hour))},
		{"no subject", signedToken(t, "", time.Now().Add(time.Hour))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := SessionFromToken(tt.token, ""); err == nil {
				t.Error("SessionFromToken() should fail")
			}
		})
	}
}

func TestProviderSetPersistsAndLoads(t *testing.T) {
	db := testStore(t)
	b := bus.New()
	ch, unsub := b.Subscribe("auth.", 10)
	defer unsub()

	p := NewProvider(db, b, zap.NewNop())
	if _, ok := p.Session(); ok {
		t.Fatal("new provider should have no session")
	}
	if err := p.Set(chat.Session{UserID: "u-1", Token: "tok"}); err != nil {
		t.Fatal(err)
	}
	if evt := <-ch; evt.Kind != bus.KindAuthSessionChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindAuthSessionChanged)
	}

	// A fresh provider on the same store restores the session.
	p2 := NewProvider(db, nil, zap.NewNop())
	ok, err := p2.Load()
	if err != nil || !ok {
		t.Fatalf("Load() = %v, %v; want true, nil", ok, err)
	}
	if s, _ := p2.Session(); s.UserID != "u-1" || s.Token != "tok" {
		t.Errorf("restored session = %+v", s)
	}
}

func TestProviderSetRejectsIncompleteSession(t *testing.T) {
	p := NewProvider(nil, nil, zap.NewNop())
	if err := p.Set(chat.Session{UserID: "u-1"}); err == nil {
		t.Error("Set() without token should fail")
	}
}

func TestProviderInvalidate(t *testing.T) {
	db := testStore(t)
	b := bus.New()
	p := NewProvider(db, b, zap.NewNop())
	if err := p.Set(chat.Session{UserID: "u-1", Token: "tok"}); err != nil {
		t.Fatal(err)
	}

	ch, unsub := b.Subscribe(bus.KindAuthInvalidated, 10)
	defer unsub()

	p.Invalidate("401 from server")
	p.Invalidate("second call is a no-op")

	if _, ok := p.Session(); ok {
		t.Error("session should be cleared")
	}
	evt := <-ch
	inv, ok := evt.Payload.(Invalidation)
	if !ok || inv.UserID != "u-1" {
		t.Errorf("payload = %#v, want Invalidation for u-1", evt.Payload)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected second event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}

	if _, found, _ := db.GetState(store.KeySession); found {
		t.Error("stored session should be deleted")
	}
}
