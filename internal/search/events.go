package search

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/quanhday/internal/metrics"
	"github.com/hyperjump/quanhday/internal/models"
	"github.com/hyperjump/quanhday/internal/storage"
)

// IsLive reports whether ev has started and not yet ended at now. A nil EndAt never ends.
// Comparisons use second granularity.
func IsLive(ev *models.Event, now time.Time) bool {
	now = now.Truncate(time.Second)
	if ev.StartAt.Truncate(time.Second).After(now) {
		return false
	}
	return ev.EndAt == nil || !ev.EndAt.Truncate(time.Second).Before(now)
}

// LiveEventsNearby returns events within radiusKm of center that are live at the
// time of the call, nearest first.
func (e *Engine) LiveEventsNearby(ctx context.Context, center models.Coordinate, radiusKm float64, category string) ([]*models.SearchResult, error) {
	now := e.now()
	results, err := e.FindNearby(ctx, models.CollectionEvents, center, radiusKm, category)
	if err != nil {
		return nil, err
	}
	live := results[:0]
	for _, r := range results {
		if r.Event != nil && IsLive(r.Event, now) {
			live = append(live, r)
		}
	}
	return live, nil
}

// UpcomingEvents returns events starting at or after now, soonest first, at most limit.
// A limit of zero or less uses the configured default.
func (e *Engine) UpcomingEvents(ctx context.Context, limit int) ([]*models.Event, error) {
	now := e.now().Truncate(time.Second)
	if limit <= 0 {
		limit = e.config.UpcomingLimit
	}
	if limit <= 0 {
		limit = 10
	}
	if e.config.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.QueryTimeout)
		defer cancel()
	}

	snaps, err := e.store.Query(ctx, models.CollectionEvents, storage.StartAtFrom(now))
	metrics.StoreQueries.WithLabelValues(models.CollectionEvents, metrics.Outcome(err)).Inc()
	if err != nil {
		e.logger.Warn("upcoming query failed", zap.Error(err))
		return nil, err
	}

	events := make([]*models.Event, 0, len(snaps))
	for i := range snaps {
		var ev models.Event
		if err := snaps[i].DataTo(&ev); err != nil {
			e.logger.Debug("skipping undecodable event", zap.String("id", snaps[i].ID), zap.Error(err))
			continue
		}
		ev.ID = snaps[i].ID
		if ev.StartAt.Before(now) {
			continue
		}
		events = append(events, &ev)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].StartAt.Before(events[j].StartAt)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// GetLocation returns the location with id, or nil when it does not exist.
func (e *Engine) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	snap, found, err := e.store.GetByID(ctx, models.CollectionLocations, id)
	if err != nil || !found {
		return nil, err
	}
	var loc models.Location
	if err := snap.DataTo(&loc); err != nil {
		return nil, err
	}
	loc.ID = snap.ID
	return &loc, nil
}

// GetEvent returns the event with id, or nil when it does not exist.
func (e *Engine) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	snap, found, err := e.store.GetByID(ctx, models.CollectionEvents, id)
	if err != nil || !found {
		return nil, err
	}
	var ev models.Event
	if err := snap.DataTo(&ev); err != nil {
		return nil, err
	}
	ev.ID = snap.ID
	return &ev, nil
}
