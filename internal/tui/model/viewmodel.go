package model

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/matheus3301/parley/internal/chat"
	"github.com/matheus3301/parley/internal/chatsync"
)

// Directory lists the users the current user can talk to.
type Directory interface {
	ListUsers(ctx context.Context) ([]chat.User, error)
}

// ViewModel caches the peer directory and the latest synchronizer snapshot
// for the views. It is safe for concurrent use.
type ViewModel struct {
	mu sync.RWMutex

	dir      Directory
	selfID   string
	peers    []chat.User
	snapshot chatsync.Snapshot
}

// NewViewModel creates a view model backed by the peer directory.
func NewViewModel(dir Directory) *ViewModel {
	return &ViewModel{dir: dir}
}

// SetSelf records the signed-in user so they are left out of the peer list.
func (vm *ViewModel) SetSelf(userID string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.selfID = userID
}

// Self returns the signed-in user id.
func (vm *ViewModel) Self() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.selfID
}

// LoadPeers fetches the directory, drops the current user and sorts by name.
func (vm *ViewModel) LoadPeers(ctx context.Context) error {
	users, err := vm.dir.ListUsers(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	peers := make([]chat.User, 0, len(users))
	for _, u := range users {
		if u.ID == vm.selfID {
			continue
		}
		peers = append(peers, u)
	}
	sort.SliceStable(peers, func(i, j int) bool {
		return strings.ToLower(displayName(peers[i])) < strings.ToLower(displayName(peers[j]))
	})
	vm.peers = peers
	return nil
}

// Peers returns a copy of the loaded peer list.
func (vm *ViewModel) Peers() []chat.User {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return append([]chat.User(nil), vm.peers...)
}

// FindPeer matches query against peer ids first, then usernames
// (case-insensitive exact, then unique prefix).
func (vm *ViewModel) FindPeer(query string) (chat.User, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return chat.User{}, false
	}
	for _, p := range vm.peers {
		if p.ID == query {
			return p, true
		}
	}
	for _, p := range vm.peers {
		if strings.ToLower(p.Username) == q {
			return p, true
		}
	}
	var match chat.User
	n := 0
	for _, p := range vm.peers {
		if strings.HasPrefix(strings.ToLower(p.Username), q) {
			match = p
			n++
		}
	}
	return match, n == 1
}

// PeerName returns the display name for a user id, or the id itself.
func (vm *ViewModel) PeerName(id string) string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, p := range vm.peers {
		if p.ID == id {
			return displayName(p)
		}
	}
	return id
}

// SetSnapshot stores the latest synchronizer snapshot.
func (vm *ViewModel) SetSnapshot(s chatsync.Snapshot) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.snapshot = s
}

// Snapshot returns the last stored snapshot.
func (vm *ViewModel) Snapshot() chatsync.Snapshot {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.snapshot
}

// LastFailed returns the id of the newest failed message in the active
// conversation.
func (vm *ViewModel) LastFailed() (string, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	msgs := vm.snapshot.Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].DeliveryState == chat.Failed {
			return msgs[i].ID, true
		}
	}
	return "", false
}

// FilterPeers returns the peers whose username or id contains filter,
// case-insensitively. An empty filter returns every peer.
func FilterPeers(peers []chat.User, filter string) []chat.User {
	f := strings.ToLower(strings.TrimSpace(filter))
	if f == "" {
		return peers
	}
	var out []chat.User
	for _, p := range peers {
		if strings.Contains(strings.ToLower(p.Username), f) || strings.Contains(strings.ToLower(p.ID), f) {
			out = append(out, p)
		}
	}
	return out
}

func displayName(u chat.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}
