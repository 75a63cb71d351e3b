// Package store keeps the symptom records produced by the intake flow.
package store

import (
	"context"
	"sync"

	"kidintake/internal/domain"
)

// Memory keeps records for the lifetime of the process.
type Memory struct {
	mu      sync.Mutex
	records []domain.SymptomRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(_ context.Context, record domain.SymptomRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (domain.SymptomRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.SymptomRecord{}, domain.ErrRecordNotFound
}

// List returns records oldest first.
func (m *Memory) List(_ context.Context) ([]domain.SymptomRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SymptomRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *Memory) MarkCompleted(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID != id {
			continue
		}
		if m.records[i].IsCompleted {
			return domain.ErrAlreadySubmitted
		}
		m.records[i].IsCompleted = true
		return nil
	}
	return domain.ErrRecordNotFound
}

func (m *Memory) Close() error {
	return nil
}
