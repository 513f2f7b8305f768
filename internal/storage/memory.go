package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/quanhday/internal/models"
)

type memoryRecord struct {
	data    []byte
	geohash *string
	startAt *time.Time
}

// MemoryStore is an in-process Store. Documents are kept encoded so callers
// never share maps with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]memoryRecord
	closed      bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]memoryRecord)}
}

// Insert stores doc under a new id.
func (s *MemoryStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	id := NewID()
	if err := s.Put(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

// Put creates or replaces the document with id.
func (s *MemoryStore) Put(ctx context.Context, collection, id string, doc Document) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return storeError("put", collection, err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w: %w", models.ErrInvalidArgument, err)
	}
	geohash, startAt := indexKeys(doc)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storeError("put", collection, errors.New("store closed"))
	}
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]memoryRecord)
		s.collections[collection] = coll
	}
	coll[id] = memoryRecord{data: data, geohash: geohash, startAt: startAt}
	return nil
}

// Query returns documents whose filter field lies in range.
func (s *MemoryStore) Query(ctx context.Context, collection string, filter RangeFilter) ([]Snapshot, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if err := filter.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, storeError("query", collection, err)
	}

	type hit struct {
		id     string
		record memoryRecord
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, storeError("query", collection, errors.New("store closed"))
	}
	var hits []hit
	for id, rec := range s.collections[collection] {
		if filter.matches(rec.geohash, rec.startAt) {
			hits = append(hits, hit{id: id, record: rec})
		}
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i].record, hits[j].record
		if filter.Field == FieldGeohash {
			if c := strings.Compare(*a.geohash, *b.geohash); c != 0 {
				return c < 0
			}
		} else if !a.startAt.Equal(*b.startAt) {
			return a.startAt.Before(*b.startAt)
		}
		return hits[i].id < hits[j].id
	})

	out := make([]Snapshot, 0, len(hits))
	for _, h := range hits {
		var data Document
		if err := json.Unmarshal(h.record.data, &data); err != nil {
			return nil, storeError("query", collection, err)
		}
		out = append(out, Snapshot{ID: h.id, Data: data})
	}
	return out, nil
}

// GetByID returns the document with id, or found=false.
func (s *MemoryStore) GetByID(ctx context.Context, collection, id string) (*Snapshot, bool, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, storeError("get", collection, err)
	}
	s.mu.RLock()
	rec, ok := s.collections[collection][id]
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, false, storeError("get", collection, errors.New("store closed"))
	}
	if !ok {
		return nil, false, nil
	}
	var data Document
	if err := json.Unmarshal(rec.data, &data); err != nil {
		return nil, false, storeError("get", collection, err)
	}
	return &Snapshot{ID: id, Data: data}, true, nil
}

// Close marks the store closed. Later calls fail with ErrStoreUnavailable.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
