package state

import (
	"context"
	"sync"

	"harvester/internal/model"
)

// Memory is an in-process Store used by `test` runs and unit tests.
type Memory struct {
	mu      sync.RWMutex
	records map[string]model.ProcessedRecord
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]model.ProcessedRecord)}
}

func (m *Memory) Get(_ context.Context, nttNo string) (*model.ProcessedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[nttNo]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) Put(_ context.Context, nttNo string, rec model.ProcessedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[nttNo] = rec
	return nil
}

func (m *Memory) Close() error { return nil }

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
