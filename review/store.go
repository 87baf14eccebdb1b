package review

import (
	"context"
	"sync"

	"paper-filter/types"
)

// DecisionStore persists review decisions so a session can be resumed
type DecisionStore interface {
	SaveDecision(ctx context.Context, sessionID string, record types.Record, decision Decision) error
	LoadDecisions(ctx context.Context, sessionID string) (map[int]Decision, error)
	ClearDecisions(ctx context.Context, sessionID string) error
}

// MemoryStore is an in-process DecisionStore
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[int]Decision
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]map[int]Decision)}
}

// SaveDecision stores or overwrites the decision for record in sessionID
func (m *MemoryStore) SaveDecision(ctx context.Context, sessionID string, record types.Record, decision Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	decisions, ok := m.sessions[sessionID]
	if !ok {
		decisions = make(map[int]Decision)
		m.sessions[sessionID] = decisions
	}
	decisions[record.ID] = decision
	return nil
}

// LoadDecisions returns a copy of the decisions stored for sessionID
func (m *MemoryStore) LoadDecisions(ctx context.Context, sessionID string) (map[int]Decision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int]Decision, len(m.sessions[sessionID]))
	for id, d := range m.sessions[sessionID] {
		out[id] = d
	}
	return out, nil
}

// ClearDecisions drops every decision stored for sessionID
func (m *MemoryStore) ClearDecisions(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}
