package sync

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Endpoint describes one remote session endpoint, typically derived from
// the schedule fetched at startup.
type Endpoint struct {
	ID          string
	DisplayName string
}

// Manager owns the set of live orchestrators, one per endpoint. Sessions
// are fully independent; the manager only opens and closes them.
type Manager struct {
	base Config
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Orchestrator
}

// NewManager creates a manager. base carries the per-user settings
// (identity, page size, delivery option); per-endpoint fields are filled
// from each Endpoint on open.
func NewManager(base Config, deps Deps) *Manager {
	return &Manager{
		base:     base,
		deps:     deps,
		sessions: map[string]*Orchestrator{},
	}
}

// OpenAll opens one session per endpoint. The list may have any length.
// An endpoint without an obtainable token is skipped, not an error; dial
// failures are logged and the remaining endpoints still open.
func (m *Manager) OpenAll(ctx context.Context, endpoints []Endpoint) {
	for _, ep := range endpoints {
		if err := m.Open(ctx, ep); err != nil {
			m.deps.Logger.Error("failed to open session", zap.String("endpoint", ep.ID), zap.Error(err))
		}
	}
}

// Open opens a session for one endpoint, replacing any existing session
// for the same endpoint.
func (m *Manager) Open(ctx context.Context, ep Endpoint) error {
	cfg := m.base
	cfg.EndpointID = ep.ID
	cfg.DisplayName = ep.DisplayName

	o, err := Open(ctx, cfg, m.deps)
	if err != nil {
		return err
	}
	if o == nil {
		// No token for this endpoint; already logged.
		return nil
	}

	m.mu.Lock()
	prev := m.sessions[ep.ID]
	m.sessions[ep.ID] = o
	m.mu.Unlock()

	if prev != nil {
		prev.Shutdown(ctx)
	}
	return nil
}

// Close shuts down the session for one endpoint, if any.
func (m *Manager) Close(ctx context.Context, endpointID string) {
	m.mu.Lock()
	o := m.sessions[endpointID]
	delete(m.sessions, endpointID)
	m.mu.Unlock()

	if o != nil {
		o.Shutdown(ctx)
	}
}

// Session returns the live orchestrator for an endpoint.
func (m *Manager) Session(endpointID string) (*Orchestrator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.sessions[endpointID]
	return o, ok
}

// Shutdown tears down every session. Best-effort, like the sessions'
// own teardown.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	all := make([]*Orchestrator, 0, len(m.sessions))
	for _, o := range m.sessions {
		all = append(all, o)
	}
	m.sessions = map[string]*Orchestrator{}
	m.mu.Unlock()

	for _, o := range all {
		o.Shutdown(ctx)
	}
}
