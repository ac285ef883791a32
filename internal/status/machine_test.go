package status

import (
	"testing"
	"time"

	"github.com/RedFoundry/convosync/internal/bus"
	"github.com/RedFoundry/convosync/internal/state"
)

// walkTo transitions the machine through the given states sequentially.
func walkTo(t *testing.T, m *Machine, states ...state.ConnectionState) {
	t.Helper()
	for _, s := range states {
		if err := m.Transition(s); err != nil {
			t.Fatalf("transition to %s failed: %v", s, err)
		}
	}
}

func TestInitialState(t *testing.T) {
	m := NewMachine("ep1", nil)
	if m.Current() != state.ConnectionDisconnected {
		t.Errorf("initial state = %s, want disconnected", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		name string
		walk []state.ConnectionState
		to   state.ConnectionState
	}{
		{"dial", nil, state.ConnectionConnecting},
		{"established", []state.ConnectionState{state.ConnectionConnecting}, state.ConnectionConnected},
		{"denied during dial", []state.ConnectionState{state.ConnectionConnecting}, state.ConnectionDenied},
		{"drop after established", []state.ConnectionState{state.ConnectionConnecting, state.ConnectionConnected}, state.ConnectionReconnecting},
		{"recovered", []state.ConnectionState{state.ConnectionConnecting, state.ConnectionConnected, state.ConnectionReconnecting}, state.ConnectionConnected},
		{"gave up", []state.ConnectionState{state.ConnectionConnecting, state.ConnectionConnected, state.ConnectionReconnecting}, state.ConnectionDisconnected},
		{"denied after retry", []state.ConnectionState{state.ConnectionConnecting, state.ConnectionConnected, state.ConnectionReconnecting}, state.ConnectionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine("ep1", nil)
			walkTo(t, m, tt.walk...)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s) error = %v", tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine("ep1", nil)
	if err := m.Transition(state.ConnectionConnected); err == nil {
		t.Error("Transition(disconnected -> connected) should fail")
	}
}

// TestRepeatIsNotAnEdge verifies that re-reporting the current state
// fails. The one-shot display-name announcement is gated on a successful
// transition into connected; a transient flicker that re-reports
// "connected" must not fire it again.
func TestRepeatIsNotAnEdge(t *testing.T) {
	m := NewMachine("ep1", nil)
	walkTo(t, m, state.ConnectionConnecting, state.ConnectionConnected)

	if err := m.Transition(state.ConnectionConnected); err == nil {
		t.Fatal("repeating connected should fail; it is not an edge")
	}
	if m.Current() != state.ConnectionConnected {
		t.Errorf("state = %s, want connected (unchanged)", m.Current())
	}
}

// TestReconnectCycle verifies the full drop/recover loop:
// connected → reconnecting → connected.
func TestReconnectCycle(t *testing.T) {
	m := NewMachine("ep1", nil)
	walkTo(t, m, state.ConnectionConnecting, state.ConnectionConnected)

	steps := []state.ConnectionState{state.ConnectionReconnecting, state.ConnectionConnected}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != state.ConnectionConnected {
		t.Errorf("final state = %s, want connected", m.Current())
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine("ep7", b)
	if err := m.Transition(state.ConnectionConnecting); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		if evt.Kind != "session.connection_changed" {
			t.Errorf("event kind = %q, want session.connection_changed", evt.Kind)
		}
		change, ok := evt.Payload.(Change)
		if !ok {
			t.Fatalf("payload type = %T, want Change", evt.Payload)
		}
		if change.EndpointID != "ep7" || change.From != state.ConnectionDisconnected || change.To != state.ConnectionConnecting {
			t.Errorf("change = %+v, want ep7 disconnected -> connecting", change)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for connection change event")
	}
}
