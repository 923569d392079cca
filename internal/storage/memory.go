package storage

import (
	"context"
	"sync"

	"github.com/org/feedbackvault/pkg/models"
)

// MemoryBackend keeps records in a map. It is meant for local runs and tests.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]models.Feedback
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: map[string]models.Feedback{}}
}

func (m *MemoryBackend) Put(_ context.Context, rec *models.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = *rec
	return nil
}

func (m *MemoryBackend) Get(_ context.Context, id string) (*models.Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryBackend) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

// Len returns the number of stored records.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryBackend) Close() {}
