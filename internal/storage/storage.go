// Package storage defines the document store used for locations and events,
// with memory, SQLite, PostgreSQL, Redis and Firestore backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/hyperjump/quanhday/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Indexed fields. Range queries are only supported on these.
const (
	FieldGeohash = "geohash"
	FieldStartAt = "startAt"
)

// Document is the field map written to and read from a collection.
type Document map[string]interface{}

// Snapshot is a stored document and its id.
type Snapshot struct {
	ID   string
	Data Document
}

// DataTo decodes the snapshot fields into v.
func (s *Snapshot) DataTo(v interface{}) error {
	raw, err := json.Marshal(s.Data)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", s.ID, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode snapshot %s: %w", s.ID, err)
	}
	return nil
}

// RangeFilter selects documents whose Field lies in [Min, Max].
// A nil bound is open. Geohash bounds are strings, startAt bounds are time.Time.
type RangeFilter struct {
	Field string
	Min   interface{}
	Max   interface{}
}

// GeohashRange returns a filter for lower <= geohash <= upper.
func GeohashRange(lower, upper string) RangeFilter {
	return RangeFilter{Field: FieldGeohash, Min: lower, Max: upper}
}

// StartAtFrom returns a filter for startAt >= t.
func StartAtFrom(t time.Time) RangeFilter {
	return RangeFilter{Field: FieldStartAt, Min: t}
}

// Store persists documents in named collections. Query results are ordered
// by the filtered field ascending, then by id. GetByID reports a missing
// document with found=false and a nil error.
type Store interface {
	Insert(ctx context.Context, collection string, doc Document) (string, error)
	Put(ctx context.Context, collection, id string, doc Document) error
	Query(ctx context.Context, collection string, filter RangeFilter) ([]Snapshot, error)
	GetByID(ctx context.Context, collection, id string) (*Snapshot, bool, error)
	Close() error
}

// NewID returns a fresh document id.
func NewID() string {
	return uuid.NewString()
}

func validateCollection(collection string) error {
	if collection == "" {
		return fmt.Errorf("empty collection name: %w", models.ErrInvalidArgument)
	}
	return nil
}

func validateKey(collection, id string) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("empty document id: %w", models.ErrInvalidArgument)
	}
	return nil
}

// storeError classifies a backend failure. Deadline errors are also ErrTimeout.
func storeError(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrInvalidArgument) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w: %w: %w", op, collection, models.ErrTimeout, models.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s %s: %w: %w", op, collection, models.ErrStoreUnavailable, err)
}
