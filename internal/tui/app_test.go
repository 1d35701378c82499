package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/parley/internal/bus"
	"github.com/matheus3301/parley/internal/chat"
	"github.com/matheus3301/parley/internal/chatsync"
)

type fakeCore struct {
	mu       sync.Mutex
	selected []string
	resent   []string
	snap     chatsync.Snapshot
}

func (f *fakeCore) SelectConversation(_ context.Context, peerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, peerID)
	return nil
}

func (f *fakeCore) Send(context.Context, string) (chat.Message, error) {
	return chat.Message{}, nil
}

func (f *fakeCore) Resend(_ context.Context, id string) (chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resent = append(f.resent, id)
	return chat.Message{}, nil
}

func (f *fakeCore) Snapshot() chatsync.Snapshot { return f.snap }

func (f *fakeCore) calls() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.selected...), append([]string(nil), f.resent...)
}

type fakeDirectory struct{ users []chat.User }

func (f *fakeDirectory) ListUsers(context.Context) ([]chat.User, error) { return f.users, nil }

type fakeSessions struct {
	mu          sync.Mutex
	sess        chat.Session
	ok          bool
	invalidated string
}

func (f *fakeSessions) Session() (chat.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess, f.ok
}

func (f *fakeSessions) Set(s chat.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess, f.ok = s, true
	return nil
}

func (f *fakeSessions) Invalidate(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ok = false
	f.invalidated = reason
}

type fakeRealtime struct{}

func (fakeRealtime) Connect(context.Context) error { return nil }

func newTestApp(t *testing.T) (*App, *fakeCore, *fakeSessions) {
	t.Helper()
	core := &fakeCore{}
	sessions := &fakeSessions{sess: chat.Session{UserID: "me", Token: "tok"}, ok: true}
	a := NewApp(Deps{
		Profile: "test",
		Core:    core,
		Directory: &fakeDirectory{users: []chat.User{
			{ID: "me", Username: "me"},
			{ID: "u1", Username: "alice"},
			{ID: "u2", Username: "bob"},
		}},
		Sessions: sessions,
		Realtime: fakeRealtime{},
		Bus:      bus.New(),
	})
	t.Cleanup(a.cancel)
	if err := a.vm.LoadPeers(context.Background()); err != nil {
		t.Fatal(err)
	}
	a.peers.Update(a.vm.Peers())
	a.pages.Reset(pagePeers)
	return a, core, sessions
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPeerCommandOpensThread(t *testing.T) {
	a, core, _ := newTestApp(t)

	a.execCommand(ParseCommand("peer ali"))

	if a.pages.Current() != pageThread {
		t.Errorf("page = %q, want %q", a.pages.Current(), pageThread)
	}
	if got := a.thread.Name(); got != "alice" {
		t.Errorf("thread name = %q, want alice", got)
	}
	waitFor(t, "select", func() bool { s, _ := core.calls(); return len(s) == 1 && s[0] == "u1" })
}

func TestPeerCommandUnknownPeer(t *testing.T) {
	a, core, _ := newTestApp(t)

	a.execCommand(ParseCommand("peer nobody"))

	if a.pages.Current() != pagePeers {
		t.Errorf("page = %q, want %q", a.pages.Current(), pagePeers)
	}
	if !strings.Contains(a.flash.Get(), "nobody") {
		t.Errorf("flash = %q", a.flash.Get())
	}
	time.Sleep(20 * time.Millisecond)
	if s, _ := core.calls(); len(s) != 0 {
		t.Errorf("selected = %v, want none", s)
	}
}

func TestResendPicksNewestFailed(t *testing.T) {
	a, core, _ := newTestApp(t)

	a.execCommand(ParseCommand("resend"))
	if a.flash.Get() != "nothing to resend" {
		t.Errorf("flash = %q", a.flash.Get())
	}

	a.vm.SetSnapshot(chatsync.Snapshot{Messages: []chat.Message{
		{ID: "local-a", DeliveryState: chat.Failed},
		{ID: "local-b", DeliveryState: chat.Failed},
	}})
	a.execCommand(ParseCommand("r"))
	waitFor(t, "resend", func() bool { _, r := core.calls(); return len(r) == 1 && r[0] == "local-b" })
}

func TestLogoutInvalidatesSession(t *testing.T) {
	a, _, sessions := newTestApp(t)

	a.execCommand(ParseCommand("logout"))

	if _, ok := sessions.Session(); ok {
		t.Error("session should be gone after logout")
	}
	if sessions.invalidated == "" {
		t.Error("Invalidate() not called")
	}
}

func TestSignInStoresSession(t *testing.T) {
	a, _, sessions := newTestApp(t)
	sessions.Invalidate("test")
	a.showLogin("")

	a.signIn("opaque-token", "u7")

	sess, ok := sessions.Session()
	if !ok || sess.UserID != "u7" || sess.Token != "opaque-token" {
		t.Errorf("session = %+v, %v", sess, ok)
	}
	if a.pages.Current() != pagePeers {
		t.Errorf("page = %q, want %q", a.pages.Current(), pagePeers)
	}
	if a.vm.Self() != "u7" {
		t.Errorf("self = %q, want u7", a.vm.Self())
	}
}

func TestUnknownCommandWarns(t *testing.T) {
	a, _, _ := newTestApp(t)
	a.execCommand(ParseCommand("frobnicate"))
	if !strings.Contains(a.flash.Get(), "frobnicate") {
		t.Errorf("flash = %q", a.flash.Get())
	}
}
