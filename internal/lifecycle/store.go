package lifecycle

import (
	"context"
	"sync"

	"github.com/suprachakra/AeroFusionXR-sub002/pkg/models"
)

// RecordStore is the storage boundary for regulated data records. Delete and
// Overwrite are idempotent: operating on an absent record is a no-op success,
// so the retention sweep and an erasure request may race harmlessly.
type RecordStore interface {
	Put(ctx context.Context, record *models.DataRecord) error
	Get(ctx context.Context, id string) (*models.DataRecord, bool, error)
	List(ctx context.Context) ([]*models.DataRecord, error)
	FindBySubject(ctx context.Context, subjectID string) ([]*models.DataRecord, error)
	// Overwrite replaces the record payload in place, typically with zeros,
	// before a secure delete.
	Overwrite(ctx context.Context, id string, payload []byte) error
	Delete(ctx context.Context, id string) error
}

// MemoryRecordStore is the in-process RecordStore used by tests and
// single-site deployments.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]*models.DataRecord
}

// NewMemoryRecordStore creates an empty in-memory store
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]*models.DataRecord)}
}

// Put stores a copy of the record
func (s *MemoryRecordStore) Put(ctx context.Context, record *models.DataRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.records[record.ID] = &clone
	return nil
}

// Get returns a copy of the record, with a presence flag
func (s *MemoryRecordStore) Get(ctx context.Context, id string) (*models.DataRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	clone := *record
	return &clone, true, nil
}

// List returns copies of all stored records
func (s *MemoryRecordStore) List(ctx context.Context) ([]*models.DataRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.DataRecord, 0, len(s.records))
	for _, record := range s.records {
		clone := *record
		out = append(out, &clone)
	}
	return out, nil
}

// FindBySubject returns copies of all records belonging to a data subject
func (s *MemoryRecordStore) FindBySubject(ctx context.Context, subjectID string) ([]*models.DataRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.DataRecord
	for _, record := range s.records {
		if record.SubjectID == subjectID {
			clone := *record
			out = append(out, &clone)
		}
	}
	return out, nil
}

// Overwrite replaces the record payload; absent records are a no-op
func (s *MemoryRecordStore) Overwrite(ctx context.Context, id string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.records[id]; ok {
		record.Payload = payload
	}
	return nil
}

// Delete removes the record; absent records are a no-op success
func (s *MemoryRecordStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}
