// Package search runs geohash-bounded nearby queries and the event time filters over the document store.
package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/quanhday/internal/config"
	"github.com/hyperjump/quanhday/internal/geo"
	"github.com/hyperjump/quanhday/internal/metrics"
	"github.com/hyperjump/quanhday/internal/models"
	"github.com/hyperjump/quanhday/internal/storage"
)

// Engine answers nearby and upcoming queries against a Store.
type Engine struct {
	store  storage.Store
	config *config.SearchConfig
	logger *zap.Logger
	now    func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger for skipped documents and query failures.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a search engine over store.
func NewEngine(store storage.Store, cfg *config.SearchConfig, opts ...EngineOption) *Engine {
	if cfg == nil {
		cfg = &config.SearchConfig{}
	}
	e := &Engine{
		store:  store,
		config: cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FindNearby returns entities of collection within radiusKm of center, nearest first.
// An empty category matches every entity. Every geohash range query must succeed;
// any failure fails the call and no partial results are returned.
func (e *Engine) FindNearby(ctx context.Context, collection string, center models.Coordinate, radiusKm float64, category string) (results []*models.SearchResult, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveNearby(collection, start, len(results), err)
	}()

	if err := center.Validate(); err != nil {
		return nil, err
	}
	radiusMeters := radiusKm * 1000
	bounds, err := geo.QueryBounds(center, radiusMeters)
	if err != nil {
		return nil, err
	}

	if e.config.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.QueryTimeout)
		defer cancel()
	}

	perBound := make([][]storage.Snapshot, len(bounds))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range bounds {
		i, b := i, b
		g.Go(func() error {
			snaps, err := e.store.Query(gctx, collection, storage.GeohashRange(b.Lower, b.Upper))
			metrics.StoreQueries.WithLabelValues(collection, metrics.Outcome(err)).Inc()
			if err != nil {
				return fmt.Errorf("range [%s, %s]: %w", b.Lower, b.Upper, err)
			}
			perBound[i] = snaps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Warn("nearby query failed",
			zap.String("collection", collection),
			zap.Int("bounds", len(bounds)),
			zap.Error(err))
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, snaps := range perBound {
		for i := range snaps {
			snap := &snaps[i]
			if _, dup := seen[snap.ID]; dup {
				continue
			}
			seen[snap.ID] = struct{}{}

			result, ok := e.decode(collection, snap)
			if !ok {
				continue
			}
			entity := result.Entity()
			if category != "" && entity.Category != category {
				continue
			}
			d := geo.DistanceMeters(center, entity.Location)
			if d > radiusMeters {
				continue
			}
			result.DistanceMeters = d
			results = append(results, result)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DistanceMeters < results[j].DistanceMeters
	})
	e.logger.Debug("nearby query",
		zap.String("collection", collection),
		zap.Int("bounds", len(bounds)),
		zap.Int("candidates", len(seen)),
		zap.Int("results", len(results)))
	return results, nil
}

// rawLocation detects documents whose coordinate components are absent.
type rawLocation struct {
	Location *struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"location"`
}

// decode converts a snapshot into a result typed by collection. Documents
// without a usable coordinate are skipped, not treated as errors.
func (e *Engine) decode(collection string, snap *storage.Snapshot) (*models.SearchResult, bool) {
	var raw rawLocation
	if err := snap.DataTo(&raw); err != nil || raw.Location == nil ||
		raw.Location.Latitude == nil || raw.Location.Longitude == nil {
		e.logger.Debug("skipping document without coordinate",
			zap.String("collection", collection), zap.String("id", snap.ID))
		return nil, false
	}

	if collection == models.CollectionEvents {
		var ev models.Event
		if err := snap.DataTo(&ev); err != nil {
			e.logger.Debug("skipping undecodable event", zap.String("id", snap.ID), zap.Error(err))
			return nil, false
		}
		ev.ID = snap.ID
		return &models.SearchResult{Type: models.SearchTypeEvent, Event: &ev}, true
	}
	var loc models.Location
	if err := snap.DataTo(&loc); err != nil {
		e.logger.Debug("skipping undecodable location", zap.String("id", snap.ID), zap.Error(err))
		return nil, false
	}
	loc.ID = snap.ID
	return &models.SearchResult{Type: models.SearchTypeLocation, Location: &loc}, true
}
