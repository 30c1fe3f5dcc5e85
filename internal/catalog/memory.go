package catalog

import (
	"context"
	"sync"
)

// MemorySource holds a fixed catalog in process.
type MemorySource struct {
	mu       sync.RWMutex
	services []ServiceRecord
}

// NewMemorySource creates a source with the given services.
func NewMemorySource(services ...ServiceRecord) *MemorySource {
	return &MemorySource{services: append([]ServiceRecord(nil), services...)}
}

// Replace swaps the whole catalog.
func (m *MemorySource) Replace(services []ServiceRecord) {
	m.mu.Lock()
	m.services = append([]ServiceRecord(nil), services...)
	m.mu.Unlock()
}

// ServicesAt implements Source.
func (m *MemorySource) ServicesAt(_ context.Context, locationID int) ([]ServiceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ServiceRecord, 0, len(m.services))
	for _, s := range m.services {
		if s.OfferedAt(locationID) {
			out = append(out, s)
		}
	}
	return out, nil
}
