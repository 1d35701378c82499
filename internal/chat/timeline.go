package chat

import (
	"cmp"
	"slices"
)

// Origin records which input stream produced a timeline entry.
type Origin int

const (
	FromCache Origin = iota
	FromFetch
	FromPush
	FromSend
)

type entry struct {
	msg    Message
	seq    uint64
	origin Origin
}

// Timeline is the ordered, id-deduplicated message list of one conversation.
// Confirmed messages are ordered by CreatedAt with ties broken by insertion
// order; unconfirmed messages always follow every confirmed one.
// A Timeline is not safe for concurrent use.
type Timeline struct {
	entries []entry
	ids     map[string]struct{}
	seq     uint64
}

// NewTimeline returns an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{ids: make(map[string]struct{})}
}

// Len returns the number of messages.
func (t *Timeline) Len() int { return len(t.entries) }

// Has reports whether a message with id is present.
func (t *Timeline) Has(id string) bool {
	_, ok := t.ids[id]
	return ok
}

// Messages returns a copy of the ordered list.
func (t *Timeline) Messages() []Message {
	out := make([]Message, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.msg
	}
	return out
}

// Confirmed returns the confirmed messages in order, suitable for caching.
func (t *Timeline) Confirmed() []Message {
	var out []Message
	for _, e := range t.entries {
		if e.msg.DeliveryState == Confirmed {
			out = append(out, e.msg)
		}
	}
	return out
}

// Get returns the message with id.
func (t *Timeline) Get(id string) (Message, bool) {
	if i := t.indexOf(id); i >= 0 {
		return t.entries[i].msg, true
	}
	return Message{}, false
}

// Clear drops every message.
func (t *Timeline) Clear() {
	t.entries = nil
	t.ids = make(map[string]struct{})
}

// Insert adds m unless a message with the same id is already present.
// It reports whether the message was added.
func (t *Timeline) Insert(m Message, origin Origin) bool {
	if !t.add(m, origin) {
		return false
	}
	t.sort()
	return true
}

// Reset replaces the whole list with msgs.
func (t *Timeline) Reset(msgs []Message, origin Origin) {
	t.Clear()
	for _, m := range msgs {
		t.add(m, origin)
	}
	t.sort()
}

// Supersede replaces cached and previously fetched content with an
// authoritative fetch result. Entries that arrived live (push or local send)
// and are not part of the result survive, as do all unconfirmed entries.
func (t *Timeline) Supersede(fetched []Message) {
	kept := make([]entry, 0, len(t.entries))
	fetchedIDs := make(map[string]struct{}, len(fetched))
	for _, m := range fetched {
		fetchedIDs[m.ID] = struct{}{}
	}
	for _, e := range t.entries {
		if _, dup := fetchedIDs[e.msg.ID]; dup {
			continue
		}
		if e.msg.DeliveryState != Confirmed || e.origin == FromPush || e.origin == FromSend {
			kept = append(kept, e)
		}
	}

	t.Clear()
	for _, m := range fetched {
		t.add(m, FromFetch)
	}
	for _, e := range kept {
		if _, dup := t.ids[e.msg.ID]; dup {
			continue
		}
		t.entries = append(t.entries, e)
		t.ids[e.msg.ID] = struct{}{}
	}
	t.sort()
}

// Confirm reconciles the local entry localID with its server counterpart.
// The entry is replaced in place and keeps its insertion rank. If the server
// message is already present (a push echo won the race) the local entry is
// dropped instead. It reports whether localID was found.
func (t *Timeline) Confirm(localID string, confirmed Message) bool {
	i := t.indexOf(localID)
	if i < 0 {
		return false
	}
	delete(t.ids, localID)
	if _, echoed := t.ids[confirmed.ID]; echoed {
		t.entries = slices.Delete(t.entries, i, i+1)
		return true
	}
	confirmed.DeliveryState = Confirmed
	t.entries[i].msg = confirmed
	t.entries[i].origin = FromSend
	t.ids[confirmed.ID] = struct{}{}
	t.sort()
	return true
}

// SetState changes the delivery state of a local entry in place.
func (t *Timeline) SetState(localID string, state DeliveryState) (Message, bool) {
	i := t.indexOf(localID)
	if i < 0 || !IsLocalID(localID) {
		return Message{}, false
	}
	t.entries[i].msg.DeliveryState = state
	t.sort()
	return t.entries[i].msg, true
}

func (t *Timeline) add(m Message, origin Origin) bool {
	if m.ID == "" {
		return false
	}
	if _, ok := t.ids[m.ID]; ok {
		return false
	}
	if m.DeliveryState == "" {
		m.DeliveryState = Confirmed
	}
	t.seq++
	t.entries = append(t.entries, entry{msg: m, seq: t.seq, origin: origin})
	t.ids[m.ID] = struct{}{}
	return true
}

func (t *Timeline) indexOf(id string) int {
	return slices.IndexFunc(t.entries, func(e entry) bool { return e.msg.ID == id })
}

func (t *Timeline) sort() {
	slices.SortStableFunc(t.entries, func(a, b entry) int {
		ua, ub := a.msg.DeliveryState != Confirmed, b.msg.DeliveryState != Confirmed
		if ua != ub {
			if ua {
				return 1
			}
			return -1
		}
		if c := a.msg.CreatedAt.Compare(b.msg.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
}
