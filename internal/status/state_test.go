package status

import (
	"testing"

	"github.com/matheus3301/autoreader/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, PairingRequired},
		{Booting, Connecting},
		{Booting, Error},
		{PairingRequired, Connecting},
		{Connecting, Capturing},
		{Capturing, Reconnecting},
		{Reconnecting, Connecting},
		{Reconnecting, Capturing},
		{Capturing, Stopping},
		{Stopping, Stopped},
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
	if err := m.Transition(Capturing); err == nil {
		t.Error("Transition(BOOTING -> CAPTURING) should fail")
	}
	if m.Current() != Booting {
		t.Errorf("state = %s, want BOOTING (unchanged)", m.Current())
	}
}

func TestStoppedIsTerminal(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Stopped)
	for _, s := range []State{Booting, Connecting, Capturing, Error} {
		if err := m.Transition(s); err == nil {
			t.Errorf("Transition(STOPPED -> %s) should fail", s)
		}
	}
}

func TestSameStateIsNoop(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("capture.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Booting); err != nil {
		t.Fatalf("Transition(BOOTING -> BOOTING) error = %v", err)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected event for no-op transition: %v", evt)
	default:
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("capture.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(PairingRequired); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindStatusChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindStatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Booting || change.To != PairingRequired {
		t.Errorf("change = %v -> %v, want BOOTING -> PAIRING_REQUIRED", change.From, change.To)
	}
}

// TestPairingLifecycle covers a first run: the account must be paired
// before capture starts.
func TestPairingLifecycle(t *testing.T) {
	m := NewMachine(nil)
	for _, s := range []State{PairingRequired, Connecting, Capturing} {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
}

func TestDisconnectReconnectCycle(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Capturing)

	for _, s := range []State{Reconnecting, Connecting, Capturing} {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
}

func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:         {},
		PairingRequired: {PairingRequired},
		Connecting:      {Connecting},
		Capturing:       {Connecting, Capturing},
		Reconnecting:    {Connecting, Capturing, Reconnecting},
		Stopping:        {Stopping},
		Stopped:         {Stopping, Stopped},
		Error:           {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
