// Package orchestrator runs a parsed intent against the nearby search engine and
// formats the results for the chat assistant.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/quanhday/internal/config"
	"github.com/hyperjump/quanhday/internal/models"
)

// User-facing messages.
const (
	MissingLocationMessage = "Mình cần biết vị trí của bạn để tìm kiếm gần đây. Hãy bật quyền truy cập vị trí và thử lại nhé!"
	StoreFailureMessage    = "Xin lỗi, hiện không thể tìm kiếm. Vui lòng thử lại sau."
	InvalidRequestMessage  = "Yêu cầu tìm kiếm không hợp lệ. Hãy thử với bán kính hoặc vị trí khác."
)

// Finder is the subset of the search engine the orchestrator needs.
type Finder interface {
	FindNearby(ctx context.Context, collection string, center models.Coordinate, radiusKm float64, category string) ([]*models.SearchResult, error)
	LiveEventsNearby(ctx context.Context, center models.Coordinate, radiusKm float64, category string) ([]*models.SearchResult, error)
}

// Orchestrator turns intents into search outcomes.
type Orchestrator struct {
	finder       Finder
	summaryLimit int
	logger       *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// New returns an Orchestrator. cfg may be nil.
func New(finder Finder, cfg *config.SearchConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{finder: finder, summaryLimit: 10, logger: zap.NewNop()}
	if cfg != nil && cfg.SummaryLimit > 0 {
		o.summaryLimit = cfg.SummaryLimit
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleSearchIntent searches locations, live events or both around coord.
// A nil coord fails the precondition without querying. When both collections are
// searched, location results come first and event results follow; the combined
// list is not re-sorted. Failures are reported in the outcome, never panicked or dropped.
func (o *Orchestrator) HandleSearchIntent(ctx context.Context, intent *models.ParsedIntent, coord *models.Coordinate) *models.SearchOutcome {
	// Validate fills in defaults; work on a copy so the caller's intent is left as passed.
	var in models.ParsedIntent
	if intent != nil {
		in = *intent
	}
	intent = &in
	out := &models.SearchOutcome{Intent: intent, Results: []*models.SearchResult{}}
	if coord == nil {
		out.Message = MissingLocationMessage
		out.Err = models.ErrPermissionDenied
		return out
	}
	if err := intent.Validate(); err != nil {
		return o.fail(out, err)
	}

	if intent.IncludesLocations() {
		locs, err := o.finder.FindNearby(ctx, models.CollectionLocations, *coord, intent.RadiusKm, intent.Category)
		if err != nil {
			return o.fail(out, fmt.Errorf("locations: %w", err))
		}
		out.Results = append(out.Results, locs...)
	}
	if intent.IncludesEvents() {
		events, err := o.finder.LiveEventsNearby(ctx, *coord, intent.RadiusKm, intent.Category)
		if err != nil {
			return o.fail(out, fmt.Errorf("events: %w", err))
		}
		out.Results = append(out.Results, events...)
	}

	out.Success = true
	out.Message = FormatSummary(out.Results, intent.RadiusKm, o.summaryLimit)
	o.logger.Debug("search intent handled",
		zap.String("category", intent.Category),
		zap.String("search_type", string(intent.SearchType)),
		zap.Float64("radius_km", intent.RadiusKm),
		zap.Int("results", len(out.Results)))
	return out
}

func (o *Orchestrator) fail(out *models.SearchOutcome, err error) *models.SearchOutcome {
	out.Results = []*models.SearchResult{}
	out.Err = err
	if errors.Is(err, models.ErrInvalidArgument) {
		out.Message = InvalidRequestMessage
		o.logger.Warn("invalid search intent", zap.Error(err))
		return out
	}
	out.Message = StoreFailureMessage
	o.logger.Error("search failed", zap.Error(err))
	return out
}
