package model

import (
	"context"
	"errors"
	"testing"

	"github.com/matheus3301/parley/internal/chat"
	"github.com/matheus3301/parley/internal/chatsync"
)

type fakeDirectory struct {
	users []chat.User
	err   error
}

func (f *fakeDirectory) ListUsers(context.Context) ([]chat.User, error) {
	return f.users, f.err
}

func loaded(t *testing.T) *ViewModel {
	t.Helper()
	vm := NewViewModel(&fakeDirectory{users: []chat.User{
		{ID: "u3", Username: "carol"},
		{ID: "me", Username: "me"},
		{ID: "u1", Username: "Alice"},
		{ID: "u2", Username: "alfred"},
		{ID: "u4"},
	}})
	vm.SetSelf("me")
	if err := vm.LoadPeers(context.Background()); err != nil {
		t.Fatal(err)
	}
	return vm
}

func TestLoadPeersExcludesSelfAndSorts(t *testing.T) {
	vm := loaded(t)
	peers := vm.Peers()
	want := []string{"u2", "u1", "u3", "u4"}
	if len(peers) != len(want) {
		t.Fatalf("peers = %v", peers)
	}
	for i, id := range want {
		if peers[i].ID != id {
			t.Errorf("peers[%d] = %s, want %s", i, peers[i].ID, id)
		}
	}
}

func TestLoadPeersError(t *testing.T) {
	vm := NewViewModel(&fakeDirectory{err: errors.New("boom")})
	if err := vm.LoadPeers(context.Background()); err == nil {
		t.Fatal("LoadPeers() should fail")
	}
	if len(vm.Peers()) != 0 {
		t.Error("peers should stay empty on error")
	}
}

func TestFilterPeers(t *testing.T) {
	vm := loaded(t)
	tests := []struct {
		filter string
		want   int
	}{
		{"", 4},
		{"AL", 2},
		{"car", 1},
		{"u4", 1},
		{"zzz", 0},
	}
	for _, tt := range tests {
		if got := FilterPeers(vm.Peers(), tt.filter); len(got) != tt.want {
			t.Errorf("FilterPeers(%q) = %d peers, want %d", tt.filter, len(got), tt.want)
		}
	}
}

func TestFindPeer(t *testing.T) {
	vm := loaded(t)
	tests := []struct {
		query  string
		wantID string
		wantOK bool
	}{
		{"u3", "u3", true},
		{"alice", "u1", true},
		{"alf", "u2", true},
		{"al", "", false},
		{"", "", false},
		{"nobody", "", false},
	}
	for _, tt := range tests {
		got, ok := vm.FindPeer(tt.query)
		if ok != tt.wantOK || (ok && got.ID != tt.wantID) {
			t.Errorf("FindPeer(%q) = %v, %v; want %s, %v", tt.query, got, ok, tt.wantID, tt.wantOK)
		}
	}
}

func TestPeerName(t *testing.T) {
	vm := loaded(t)
	if got := vm.PeerName("u1"); got != "Alice" {
		t.Errorf("PeerName(u1) = %q", got)
	}
	if got := vm.PeerName("u4"); got != "u4" {
		t.Errorf("PeerName(u4) = %q", got)
	}
	if got := vm.PeerName("ghost"); got != "ghost" {
		t.Errorf("PeerName(ghost) = %q", got)
	}
}

func TestLastFailed(t *testing.T) {
	vm := NewViewModel(&fakeDirectory{})
	if _, ok := vm.LastFailed(); ok {
		t.Error("LastFailed() on empty snapshot should report false")
	}
	vm.SetSnapshot(chatsync.Snapshot{Messages: []chat.Message{
		{ID: "local-1", DeliveryState: chat.Failed},
		{ID: "m1", DeliveryState: chat.Confirmed},
		{ID: "local-2", DeliveryState: chat.Failed},
		{ID: "local-3", DeliveryState: chat.Pending},
	}})
	if id, ok := vm.LastFailed(); !ok || id != "local-2" {
		t.Errorf("LastFailed() = %q, %v; want local-2", id, ok)
	}
}
