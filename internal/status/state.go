package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/autoreader/internal/bus"
)

// State is a lifecycle state of the capture daemon.
type State string

const (
	Booting         State = "BOOTING"
	PairingRequired State = "PAIRING_REQUIRED"
	Connecting      State = "CONNECTING"
	Capturing       State = "CAPTURING"
	Reconnecting    State = "RECONNECTING"
	Stopping        State = "STOPPING"
	Stopped         State = "STOPPED"
	Error           State = "ERROR"
)

var validTransitions = map[State][]State{
	Booting:         {PairingRequired, Connecting, Error, Stopping},
	PairingRequired: {Connecting, Error, Stopping},
	Connecting:      {Capturing, PairingRequired, Reconnecting, Error, Stopping},
	Capturing:       {Reconnecting, PairingRequired, Error, Stopping},
	Reconnecting:    {Connecting, Capturing, Error, Stopping},
	Stopping:        {Stopped},
	Stopped:         {},
	Error:           {Booting, Stopping},
}

// Machine tracks and enforces daemon state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	since   time.Time
	bus     *bus.Bus
}

// NewMachine creates a machine in Booting. b may be nil.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{current: Booting, since: time.Now(), bus: b}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Since returns when the current state was entered.
func (m *Machine) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// Transition moves to a new state or returns an error if not allowed.
// Transitioning to the current state is a no-op.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.since = time.Now()
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindStatusChanged,
			Timestamp: m.since,
			Payload:   StatusChange{From: from, To: to},
		})
	}
	return nil
}

// StatusChange is the payload of status change events.
type StatusChange struct {
	From State
	To   State
}
