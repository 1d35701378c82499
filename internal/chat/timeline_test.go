package chat

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"
)

var base = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

func msgAt(id string, offset int) Message {
	return Message{ID: id, ConversationID: "c1", SenderID: "u2", Content: id, CreatedAt: base.Add(time.Duration(offset) * time.Second)}
}

func ids(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func assertIDs(t *testing.T, tl *Timeline, want ...string) {
	t.Helper()
	got := ids(tl.Messages())
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
}

func assertInvariants(t *testing.T, msgs []Message) {
	t.Helper()
	seen := make(map[string]bool)
	sawUnconfirmed := false
	for i, m := range msgs {
		if seen[m.ID] {
			t.Fatalf("id %q appears twice", m.ID)
		}
		seen[m.ID] = true
		if m.DeliveryState != Confirmed {
			sawUnconfirmed = true
		} else if sawUnconfirmed {
			t.Fatalf("confirmed %q follows an unconfirmed message", m.ID)
		}
		if i > 0 && msgs[i-1].DeliveryState == m.DeliveryState && m.CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("%q (%v) sorted after %q (%v)", m.ID, m.CreatedAt, msgs[i-1].ID, msgs[i-1].CreatedAt)
		}
	}
}

func TestInsertDedupByID(t *testing.T) {
	tl := NewTimeline()
	if !tl.Insert(msgAt("m1", 1), FromPush) {
		t.Fatal("first insert should succeed")
	}
	dup := msgAt("m1", 5)
	dup.Content = "different content"
	if tl.Insert(dup, FromPush) {
		t.Fatal("second insert with same id should be ignored")
	}
	if tl.Len() != 1 {
		t.Errorf("len = %d, want 1", tl.Len())
	}
	got, _ := tl.Get("m1")
	if got.Content != "m1" {
		t.Errorf("content = %q, original should be kept", got.Content)
	}
}

func TestSameContentDifferentIDsAreKept(t *testing.T) {
	tl := NewTimeline()
	a, b := msgAt("m1", 1), msgAt("m2", 1)
	a.Content, b.Content = "hi", "hi"
	tl.Insert(a, FromPush)
	tl.Insert(b, FromPush)
	if tl.Len() != 2 {
		t.Errorf("len = %d, dedup must be by id, not content", tl.Len())
	}
}

func TestOrderingTiesByInsertion(t *testing.T) {
	tl := NewTimeline()
	tl.Insert(msgAt("late", 10), FromPush)
	tl.Insert(msgAt("tie-a", 5), FromPush)
	tl.Insert(msgAt("tie-b", 5), FromPush)
	tl.Insert(msgAt("early", 1), FromPush)

	assertIDs(t, tl, "early", "tie-a", "tie-b", "late")
}

func TestDelayedPushDoesNotMisorder(t *testing.T) {
	tl := NewTimeline()
	tl.Reset([]Message{msgAt("m1", 1), msgAt("m3", 3)}, FromFetch)
	tl.Insert(msgAt("m2", 2), FromPush)

	assertIDs(t, tl, "m1", "m2", "m3")
}

func TestUnconfirmedFollowConfirmed(t *testing.T) {
	tl := NewTimeline()
	tl.Insert(msgAt("m1", 1), FromFetch)
	pending := Message{ID: NewLocalID(), Content: "hi", CreatedAt: base, DeliveryState: Pending}
	tl.Insert(pending, FromSend)
	// Known to the client only after the pending send; still ordered before it.
	tl.Insert(msgAt("m2", 50), FromPush)

	got := tl.Messages()
	if got[2].ID != pending.ID {
		t.Fatalf("pending should be last, got order %v", ids(got))
	}
	assertInvariants(t, got)
}

func TestConfirmReplacesInPlace(t *testing.T) {
	tl := NewTimeline()
	tl.Reset([]Message{msgAt("m1", 1), msgAt("m2", 2)}, FromFetch)
	localID := NewLocalID()
	tl.Insert(Message{ID: localID, Content: "hi", CreatedAt: base.Add(3 * time.Second), DeliveryState: Pending}, FromSend)

	server := msgAt("s1", 4)
	server.Content = "hi"
	if !tl.Confirm(localID, server) {
		t.Fatal("Confirm did not find the local entry")
	}

	got := tl.Messages()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[2].ID != "s1" || got[2].DeliveryState != Confirmed {
		t.Errorf("position 2 = %+v, want confirmed s1", got[2])
	}
	if tl.Has(localID) {
		t.Error("local id should be gone after confirmation")
	}
}

func TestConfirmAfterEchoDropsLocal(t *testing.T) {
	tl := NewTimeline()
	localID := NewLocalID()
	tl.Insert(Message{ID: localID, Content: "hi", CreatedAt: base, DeliveryState: Pending}, FromSend)
	tl.Insert(msgAt("s1", 1), FromPush)

	if !tl.Confirm(localID, msgAt("s1", 1)) {
		t.Fatal("Confirm should report the local entry as handled")
	}
	assertIDs(t, tl, "s1")
}

func TestSetStateOnlyTouchesLocalEntries(t *testing.T) {
	tl := NewTimeline()
	tl.Insert(msgAt("s1", 1), FromFetch)
	if _, ok := tl.SetState("s1", Failed); ok {
		t.Error("server entries must not change delivery state")
	}

	localID := NewLocalID()
	tl.Insert(Message{ID: localID, CreatedAt: base, DeliveryState: Pending}, FromSend)
	m, ok := tl.SetState(localID, Failed)
	if !ok || m.DeliveryState != Failed {
		t.Fatalf("SetState = %+v, %v", m, ok)
	}
	if tl.Len() != 2 {
		t.Errorf("failed entry must not be removed, len = %d", tl.Len())
	}
}

func TestSupersedeDropsStaleCacheKeepsLive(t *testing.T) {
	tl := NewTimeline()
	tl.Reset([]Message{msgAt("cached-only", 1), msgAt("m2", 2)}, FromCache)
	tl.Insert(msgAt("pushed", 9), FromPush)
	localID := NewLocalID()
	tl.Insert(Message{ID: localID, CreatedAt: base.Add(10 * time.Second), DeliveryState: Pending}, FromSend)

	tl.Supersede([]Message{msgAt("m2", 2), msgAt("m3", 3)})

	assertIDs(t, tl, "m2", "m3", "pushed", localID)
}

func TestSupersedeWithPushAlreadyInFetch(t *testing.T) {
	tl := NewTimeline()
	tl.Insert(msgAt("m3", 3), FromPush)
	tl.Supersede([]Message{msgAt("m1", 1), msgAt("m3", 3)})
	assertIDs(t, tl, "m1", "m3")
}

// TestRandomPushesAndFetchKeepInvariants interleaves duplicate pushes with one
// fetch in random order and checks the dedup and ordering invariants after
// every mutation.
func TestRandomPushesAndFetchKeepInvariants(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 200; round++ {
		tl := NewTimeline()
		var fetched []Message
		for i := 0; i < 20; i++ {
			fetched = append(fetched, msgAt(fmt.Sprintf("m%d", i), i))
		}
		fetchAt := r.IntN(40)
		for step := 0; step < 40; step++ {
			if step == fetchAt {
				tl.Supersede(fetched)
			} else {
				n := r.IntN(25)
				tl.Insert(msgAt(fmt.Sprintf("m%d", n), n), FromPush)
			}
			assertInvariants(t, tl.Messages())
		}
		for _, m := range fetched {
			if !tl.Has(m.ID) {
				t.Fatalf("round %d: fetched %q missing", round, m.ID)
			}
		}
	}
}
