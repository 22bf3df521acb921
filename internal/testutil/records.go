package testutil

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"invsnap/internal/inv"
)

// MemoryRecordStore is an in-memory inv.RecordStore. Documents are returned
// from FetchAll ordered by id, like the SQLite store.
type MemoryRecordStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any

	// FetchErr, when set, is returned by every FetchAll call.
	FetchErr error
	// PutErr, when set, is returned by every Put call.
	PutErr error
	// BeforeFetch, when set, runs at the start of FetchAll without the lock
	// held. Tests use it to hold a fetch open.
	BeforeFetch func()
}

// NewMemoryRecordStore creates an empty store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{collections: make(map[string]map[string]map[string]any)}
}

// FetchAll returns shallow copies of every document in the collection.
func (s *MemoryRecordStore) FetchAll(collection string) ([]inv.RawRecord, error) {
	if s.BeforeFetch != nil {
		s.BeforeFetch()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FetchErr != nil {
		return nil, s.FetchErr
	}
	docs := s.collections[collection]
	records := make([]inv.RawRecord, 0, len(docs))
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		records = append(records, inv.RawRecord{ID: id, Fields: maps.Clone(docs[id])})
	}
	return records, nil
}

// Put creates or replaces a document.
func (s *MemoryRecordStore) Put(collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.PutErr != nil {
		return s.PutErr
	}
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]map[string]any)
	}
	s.collections[collection][id] = maps.Clone(fields)
	return nil
}

// Delete removes a document.
func (s *MemoryRecordStore) Delete(collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], id)
	return nil
}

// Get returns a document, or nil if absent.
func (s *MemoryRecordStore) Get(collection, id string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collections[collection][id]
}

// Count returns the number of documents in a collection.
func (s *MemoryRecordStore) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collections[collection])
}

// MustPut is Put for test setup; it panics on error.
func (s *MemoryRecordStore) MustPut(collection, id string, fields map[string]any) {
	if err := s.Put(collection, id, fields); err != nil {
		panic(fmt.Sprintf("MustPut(%s/%s): %v", collection, id, err))
	}
}

var _ inv.RecordStore = (*MemoryRecordStore)(nil)
