package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/parley/internal/bus"
)

// State represents the synchronizer state for the active conversation.
type State string

const (
	Idle      State = "IDLE"
	Resolving State = "RESOLVING"
	Loading   State = "LOADING"
	Live      State = "LIVE"
	Error     State = "ERROR"
)

// validTransitions defines allowed state transitions. Resolving may re-enter
// itself when the user picks another peer before the first resolve returns.
var validTransitions = map[State][]State{
	Idle:      {Resolving, Error},
	Resolving: {Resolving, Loading, Error, Idle},
	Loading:   {Live, Resolving, Error, Idle},
	Live:      {Resolving, Error, Idle},
	Error:     {Resolving, Idle},
}

// Machine tracks and enforces synchronizer state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Idle state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Idle,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.bus.Emit(bus.KindChatStateChanged, StatusChange{From: from, To: to})
	return nil
}

// StatusChange is the payload for state change events.
type StatusChange struct {
	From State
	To   State
}
