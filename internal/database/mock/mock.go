// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kozaktomas/photo-report/internal/database"
)

// MockRecordStore is an in-memory database.RecordWriter
type MockRecordStore struct {
	mu       sync.RWMutex
	records  map[string]*database.Record
	projects map[string]*database.Project

	// Error injection
	ListRecordsError   error
	GetRecordError     error
	GetProjectError    error
	SetPreferredError  error
	PreferredIndexSets int // number of successful SetPreferredImageIndex calls
}

// NewMockRecordStore creates a new mock record store
func NewMockRecordStore() *MockRecordStore {
	return &MockRecordStore{
		records:  make(map[string]*database.Record),
		projects: make(map[string]*database.Project),
	}
}

// AddProject adds a project to the mock store
func (m *MockRecordStore) AddProject(p database.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = &p
}

// AddRecord adds a record to the mock store
func (m *MockRecordStore) AddRecord(r database.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = &r
}

// ListRecords returns matching records ordered by measurement time, then ID
func (m *MockRecordStore) ListRecords(ctx context.Context, filter database.RecordFilter) ([]database.Record, error) {
	if m.ListRecordsError != nil {
		return nil, m.ListRecordsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []database.Record{}
	for _, r := range m.records {
		if r.ProjectID != filter.ProjectID {
			continue
		}
		if filter.MonitoringType != "" && r.MonitoringType != filter.MonitoringType {
			continue
		}
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b database.Record) int {
		switch {
		case a.MeasuredAt == nil && b.MeasuredAt != nil:
			return 1
		case a.MeasuredAt != nil && b.MeasuredAt == nil:
			return -1
		case a.MeasuredAt != nil && b.MeasuredAt != nil:
			if c := a.MeasuredAt.Compare(*b.MeasuredAt); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// GetRecord returns a record or database.ErrNotFound
func (m *MockRecordStore) GetRecord(ctx context.Context, id string) (*database.Record, error) {
	if m.GetRecordError != nil {
		return nil, m.GetRecordError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, database.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

// GetProject returns a project or database.ErrNotFound
func (m *MockRecordStore) GetProject(ctx context.Context, id string) (*database.Project, error) {
	if m.GetProjectError != nil {
		return nil, m.GetProjectError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, database.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

// SetPreferredImageIndex stores the preferred index on the record
func (m *MockRecordStore) SetPreferredImageIndex(ctx context.Context, recordID string, index int) error {
	if m.SetPreferredError != nil {
		return m.SetPreferredError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[recordID]
	if !ok {
		return fmt.Errorf("record %s: %w", recordID, database.ErrNotFound)
	}
	idx := index
	r.PreferredImageIndex = &idx
	m.PreferredIndexSets++
	return nil
}

// Ensure interface compliance
var _ database.RecordWriter = (*MockRecordStore)(nil)
