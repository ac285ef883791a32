// Package status tracks the connection lifecycle of one endpoint session:
// disconnected → connecting → connected → (denied | reconnecting |
// disconnected). Each orchestrator owns one machine; transitions into
// connected are edges, so side effects gated on them cannot repeat on
// flicker.
package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/RedFoundry/convosync/internal/bus"
	"github.com/RedFoundry/convosync/internal/state"
)

// validTransitions defines allowed connection state transitions.
var validTransitions = map[state.ConnectionState][]state.ConnectionState{
	state.ConnectionDisconnected: {state.ConnectionConnecting},
	state.ConnectionConnecting:   {state.ConnectionConnected, state.ConnectionDenied, state.ConnectionReconnecting, state.ConnectionDisconnected},
	state.ConnectionConnected:    {state.ConnectionReconnecting, state.ConnectionDenied, state.ConnectionDisconnected},
	state.ConnectionReconnecting: {state.ConnectionConnected, state.ConnectionConnecting, state.ConnectionDenied, state.ConnectionDisconnected},
	state.ConnectionDenied:       {state.ConnectionConnecting, state.ConnectionDisconnected},
}

// Machine tracks and enforces one session's connection state.
type Machine struct {
	mu         sync.RWMutex
	endpointID string
	current    state.ConnectionState
	bus        *bus.Bus
}

// NewMachine creates a machine for the given endpoint, starting
// disconnected.
func NewMachine(endpointID string, b *bus.Bus) *Machine {
	return &Machine{
		endpointID: endpointID,
		current:    state.ConnectionDisconnected,
		bus:        b,
	}
}

// Current returns the current connection state.
func (m *Machine) Current() state.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns an error when the
// move is not a valid edge; repeating the current state is not an edge.
func (m *Machine) Transition(to state.ConnectionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if to == m.current {
		return fmt.Errorf("already %s", to)
	}
	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      "session.connection_changed",
			Timestamp: time.Now(),
			Payload: Change{
				EndpointID: m.endpointID,
				From:       from,
				To:         to,
			},
		})
	}
	return nil
}

// Change is the payload for connection change events.
type Change struct {
	EndpointID string
	From       state.ConnectionState
	To         state.ConnectionState
}
