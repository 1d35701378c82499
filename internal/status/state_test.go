package status

import (
	"testing"

	"github.com/matheus3301/parley/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Idle {
		t.Errorf("initial state = %s, want IDLE", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Idle, Resolving},
		{Idle, Error},
		{Resolving, Loading},
		{Resolving, Resolving},
		{Resolving, Error},
		{Loading, Live},
		{Loading, Resolving},
		{Live, Resolving},
		{Live, Error},
		{Error, Resolving},
		{Error, Idle},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Live); err == nil {
		t.Error("Transition(IDLE -> LIVE) should fail")
	}
	if m.Current() != Idle {
		t.Errorf("state = %s, want IDLE (should not have changed)", m.Current())
	}
}

// TestResolvingCannotSkipLoading verifies that a resolved conversation always
// passes through LOADING, where the cache is painted before history arrives.
func TestResolvingCannotSkipLoading(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Resolving)

	if err := m.Transition(Live); err == nil {
		t.Fatal("Transition(RESOLVING -> LIVE) should fail")
	}
	if err := m.Transition(Loading); err != nil {
		t.Fatalf("RESOLVING -> LOADING: %v", err)
	}
	if err := m.Transition(Live); err != nil {
		t.Fatalf("LOADING -> LIVE: %v", err)
	}
}

func TestErrorCannotGoLiveDirectly(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Error)
	for _, to := range []State{Loading, Live} {
		if err := m.Transition(to); err == nil {
			t.Errorf("Transition(ERROR -> %s) should fail", to)
		}
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("chat.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Resolving); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindChatStateChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindChatStateChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Idle || change.To != Resolving {
		t.Errorf("change = %v -> %v, want IDLE -> RESOLVING", change.From, change.To)
	}
}

// TestSwitchPeerCycle simulates selecting a second peer while the first one is live:
// IDLE → RESOLVING → LOADING → LIVE → RESOLVING → LOADING → LIVE
func TestSwitchPeerCycle(t *testing.T) {
	m := NewMachine(nil)

	steps := []State{Resolving, Loading, Live, Resolving, Loading, Live}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Live {
		t.Errorf("final state = %s, want LIVE", m.Current())
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Idle:      {},
		Resolving: {Resolving},
		Loading:   {Resolving, Loading},
		Live:      {Resolving, Loading, Live},
		Error:     {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
