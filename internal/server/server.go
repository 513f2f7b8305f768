// Package server provides the HTTP API for quanhday.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/quanhday/internal/chat"
	"github.com/hyperjump/quanhday/internal/config"
	"github.com/hyperjump/quanhday/internal/geocode"
	"github.com/hyperjump/quanhday/internal/intent"
	"github.com/hyperjump/quanhday/internal/keyword"
	"github.com/hyperjump/quanhday/internal/metrics"
	"github.com/hyperjump/quanhday/internal/models"
	"github.com/hyperjump/quanhday/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Nearby is the search engine surface served over HTTP.
type Nearby interface {
	FindNearby(ctx context.Context, collection string, center models.Coordinate, radiusKm float64, category string) ([]*models.SearchResult, error)
	LiveEventsNearby(ctx context.Context, center models.Coordinate, radiusKm float64, category string) ([]*models.SearchResult, error)
	UpcomingEvents(ctx context.Context, limit int) ([]*models.Event, error)
	GetLocation(ctx context.Context, id string) (*models.Location, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

// Searcher runs parsed intents.
type Searcher interface {
	HandleSearchIntent(ctx context.Context, intent *models.ParsedIntent, coord *models.Coordinate) *models.SearchOutcome
}

// Assistant answers chat messages.
type Assistant interface {
	Send(ctx context.Context, sessionID, message string, coord *models.Coordinate) (*chat.Reply, error)
	Reset(sessionID string)
}

// KeywordSearcher looks up entities by free text.
type KeywordSearcher interface {
	Search(ctx context.Context, query, collection string, limit int) (*keyword.Result, error)
	DocCount() (uint64, error)
}

// ReverseGeocoder turns a coordinate into an address.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, c models.Coordinate) (string, error)
}

// WatchService manages catalog watch directories. Optional; when nil the catalog endpoints return 501.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Dependencies are the components the API serves. Nearby, Parser and Searcher are required.
type Dependencies struct {
	Nearby    Nearby
	Parser    *intent.Parser
	Searcher  Searcher
	Assistant Assistant
	Keyword   KeywordSearcher
	Geocoder  ReverseGeocoder
	Locator   geocode.Locator
	Store     storage.Store
	Watch     WatchService
}

// Server is the HTTP server for the quanhday API.
type Server struct {
	deps       Dependencies
	config     *config.Config
	configPath string
	configMu   sync.Mutex
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates a server. configPath, when set, is where catalog directory changes are persisted.
func NewServer(deps Dependencies, cfg *config.Config, configPath string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		deps:       deps,
		config:     cfg,
		configPath: configPath,
		logger:     logger,
	}
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/locations/nearby", s.handleLocationsNearby)
		r.Get("/locations/{id}", s.handleGetLocation)
		r.Get("/events/live", s.handleEventsLive)
		r.Get("/events/upcoming", s.handleEventsUpcoming)
		r.Get("/events/{id}", s.handleGetEvent)
		r.Post("/intent", s.handleIntent)
		r.Post("/search", s.handleSearch)
		r.Post("/chat", s.handleChat)
		r.Delete("/chat/{session}", s.handleChatReset)
		r.Get("/find", s.handleFind)
		r.Get("/geocode/reverse", s.handleReverseGeocode)
		r.Get("/catalog/directories", s.handleCatalogDirectoriesList)
		r.Post("/catalog/directories", s.handleCatalogDirectoriesAdd)
		r.Delete("/catalog/directories", s.handleCatalogDirectoriesRemove)
	})
	return r
}

// instrument records request counts and latency by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
