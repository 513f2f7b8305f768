package storage

import (
	"fmt"
	"time"

	"github.com/hyperjump/quanhday/internal/models"
)

// validate checks the field and bound types.
func (f RangeFilter) validate() error {
	switch f.Field {
	case FieldGeohash:
		if _, _, err := f.stringBounds(); err != nil {
			return err
		}
	case FieldStartAt:
		if _, _, err := f.timeBounds(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported range field %q: %w", f.Field, models.ErrInvalidArgument)
	}
	return nil
}

func (f RangeFilter) stringBounds() (lo, hi *string, err error) {
	conv := func(v interface{}) (*string, error) {
		if v == nil {
			return nil, nil
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s bound must be a string, got %T: %w", f.Field, v, models.ErrInvalidArgument)
		}
		return &s, nil
	}
	if lo, err = conv(f.Min); err != nil {
		return nil, nil, err
	}
	if hi, err = conv(f.Max); err != nil {
		return nil, nil, err
	}
	return lo, hi, nil
}

func (f RangeFilter) timeBounds() (lo, hi *time.Time, err error) {
	conv := func(v interface{}) (*time.Time, error) {
		if v == nil {
			return nil, nil
		}
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("%s bound must be a time, got %T: %w", f.Field, v, models.ErrInvalidArgument)
		}
		return &t, nil
	}
	if lo, err = conv(f.Min); err != nil {
		return nil, nil, err
	}
	if hi, err = conv(f.Max); err != nil {
		return nil, nil, err
	}
	return lo, hi, nil
}

// indexKeys pulls the indexed fields out of doc. Missing or malformed values are nil.
func indexKeys(doc Document) (geohash *string, startAt *time.Time) {
	if s, ok := doc[FieldGeohash].(string); ok && s != "" {
		geohash = &s
	}
	if t, ok := timeValue(doc[FieldStartAt]); ok {
		startAt = &t
	}
	return geohash, startAt
}

func timeValue(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}

// matches reports whether the indexed key of a document falls inside the filter.
func (f RangeFilter) matches(geohash *string, startAt *time.Time) bool {
	switch f.Field {
	case FieldGeohash:
		if geohash == nil {
			return false
		}
		lo, hi, _ := f.stringBounds()
		return (lo == nil || *geohash >= *lo) && (hi == nil || *geohash <= *hi)
	case FieldStartAt:
		if startAt == nil {
			return false
		}
		lo, hi, _ := f.timeBounds()
		return (lo == nil || !startAt.Before(*lo)) && (hi == nil || !startAt.After(*hi))
	}
	return false
}

func unixMillis(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
