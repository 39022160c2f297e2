package store

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local Store. Values are kept as written, without
// serialization. Safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]StoredState
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]StoredState)}
}

// Get retrieves the stored state for a (pipeline, stage) key.
func (m *Memory) Get(_ context.Context, pipelineID, stageID string) (StoredState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.data[stateKey(pipelineID, stageID)]
	return st, ok, nil
}

// Put stores a stage output snapshot, overwriting any previous one.
func (m *Memory) Put(_ context.Context, pipelineID, stageID string, value any, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[stateKey(pipelineID, stageID)] = StoredState{Value: value, Timestamp: ts}
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
