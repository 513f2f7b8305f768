package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/quanhday/internal/chat"
	"github.com/hyperjump/quanhday/internal/config"
	"github.com/hyperjump/quanhday/internal/models"
	"github.com/hyperjump/quanhday/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLocationsNearby(w http.ResponseWriter, r *http.Request) {
	center, radius, category, ok := s.nearbyParams(w, r)
	if !ok {
		return
	}
	results, err := s.deps.Nearby.FindNearby(r.Context(), models.CollectionLocations, *center, radius, category)
	if err != nil {
		s.respondErr(w, "nearby locations failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": results, "count": len(results)})
}

func (s *Server) handleEventsLive(w http.ResponseWriter, r *http.Request) {
	center, radius, category, ok := s.nearbyParams(w, r)
	if !ok {
		return
	}
	results, err := s.deps.Nearby.LiveEventsNearby(r.Context(), *center, radius, category)
	if err != nil {
		s.respondErr(w, "live events failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": results, "count": len(results)})
}

// nearbyParams reads lat, lng, radius_km and category. It writes the error response itself.
func (s *Server) nearbyParams(w http.ResponseWriter, r *http.Request) (*models.Coordinate, float64, string, bool) {
	q := r.URL.Query()
	center, err := s.coordinate(r, q.Get("lat"), q.Get("lng"))
	if err != nil {
		s.respondErr(w, "nearby request rejected", err)
		return nil, 0, "", false
	}
	radius := s.defaultRadius()
	if v := q.Get("radius_km"); v != "" {
		radius, err = strconv.ParseFloat(v, 64)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid radius_km")
			return nil, 0, "", false
		}
	}
	return center, radius, q.Get("category"), true
}

func (s *Server) defaultRadius() float64 {
	if s.config != nil && s.config.Search.DefaultRadiusKm > 0 {
		return s.config.Search.DefaultRadiusKm
	}
	return models.DefaultRadiusKm
}

// coordinate parses lat/lng. When both are empty the configured locator is asked; without one
// the result is ErrPermissionDenied.
func (s *Server) coordinate(r *http.Request, lat, lng string) (*models.Coordinate, error) {
	if lat == "" && lng == "" {
		if s.deps.Locator == nil {
			return nil, fmt.Errorf("no coordinate in request: %w", models.ErrPermissionDenied)
		}
		return s.deps.Locator.CurrentCoordinate(r.Context())
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid lat %q", models.ErrInvalidArgument, lat)
	}
	lo, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid lng %q", models.ErrInvalidArgument, lng)
	}
	c := models.Coordinate{Latitude: la, Longitude: lo}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// bodyCoordinate resolves optional lat/lng body fields. A missing coordinate is not an error here;
// the orchestrator reports it to the user.
func (s *Server) bodyCoordinate(r *http.Request, lat, lng *float64) (*models.Coordinate, error) {
	if lat == nil && lng == nil {
		if s.deps.Locator == nil {
			return nil, nil
		}
		c, err := s.deps.Locator.CurrentCoordinate(r.Context())
		if errors.Is(err, models.ErrPermissionDenied) {
			return nil, nil
		}
		return c, err
	}
	if lat == nil || lng == nil {
		return nil, fmt.Errorf("%w: lat and lng must be given together", models.ErrInvalidArgument)
	}
	c := models.Coordinate{Latitude: *lat, Longitude: *lng}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Server) handleEventsUpcoming(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	events, err := s.deps.Nearby.UpcomingEvents(r.Context(), limit)
	if err != nil {
		s.respondErr(w, "upcoming events failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"events": events, "count": len(events)})
}

func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := s.deps.Nearby.GetLocation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, "get location failed", err)
		return
	}
	if loc == nil {
		s.respondError(w, http.StatusNotFound, "location not found")
		return
	}
	s.respondJSON(w, http.StatusOK, loc)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.deps.Nearby.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, "get event failed", err)
		return
	}
	if ev == nil {
		s.respondError(w, http.StatusNotFound, "event not found")
		return
	}
	s.respondJSON(w, http.StatusOK, ev)
}

type intentRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.respondJSON(w, http.StatusOK, s.deps.Parser.Parse(req.Text))
}

type searchRequest struct {
	Text   string               `json:"text"`
	Intent *models.ParsedIntent `json:"intent"`
	Lat    *float64             `json:"lat"`
	Lng    *float64             `json:"lng"`
}

type searchResponse struct {
	*models.SearchOutcome
	Error string `json:"error,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	coord, err := s.bodyCoordinate(r, req.Lat, req.Lng)
	if err != nil {
		s.respondErr(w, "search request rejected", err)
		return
	}
	in := req.Intent
	if in == nil {
		in = s.deps.Parser.Parse(req.Text)
	}
	s.logger.Debug("search request",
		zap.String("category", in.Category),
		zap.Float64("radius_km", in.RadiusKm),
		zap.Bool("has_location", coord != nil))
	outcome := s.deps.Searcher.HandleSearchIntent(r.Context(), in, coord)
	if outcome.Success {
		s.respondJSON(w, http.StatusOK, searchResponse{SearchOutcome: outcome})
		return
	}
	s.respondJSON(w, statusFor(outcome.Err), searchResponse{SearchOutcome: outcome, Error: errorText(outcome.Err)})
}

type chatRequest struct {
	SessionID string   `json:"session_id"`
	Message   string   `json:"message"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	*chat.Reply
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assistant == nil {
		s.respondError(w, http.StatusNotImplemented, "chat not enabled")
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	coord, err := s.bodyCoordinate(r, req.Lat, req.Lng)
	if err != nil {
		s.respondErr(w, "chat request rejected", err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}
	reply, err := s.deps.Assistant.Send(r.Context(), req.SessionID, req.Message, coord)
	if err != nil {
		s.respondErr(w, "chat failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, chatResponse{SessionID: req.SessionID, Reply: reply})
}

func (s *Server) handleChatReset(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assistant == nil {
		s.respondError(w, http.StatusNotImplemented, "chat not enabled")
		return
	}
	s.deps.Assistant.Reset(chi.URLParam(r, "session"))
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	if s.deps.Keyword == nil {
		s.respondError(w, http.StatusNotImplemented, "keyword index not enabled")
		return
	}
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	collection := q.Get("collection")
	if collection != "" && collection != models.CollectionLocations && collection != models.CollectionEvents {
		s.respondError(w, http.StatusBadRequest, "collection must be locations or events")
		return
	}
	limit := 10
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	res, err := s.deps.Keyword.Search(r.Context(), query, collection, limit)
	if err != nil {
		s.respondErr(w, "keyword search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("lat") == "" || q.Get("lng") == "" {
		s.respondError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}
	c, err := s.coordinate(r, q.Get("lat"), q.Get("lng"))
	if err != nil {
		s.respondErr(w, "reverse geocode rejected", err)
		return
	}
	resp := map[string]interface{}{"coordinate": c, "address": c.String(), "fallback": true}
	if s.deps.Geocoder != nil {
		name, err := s.deps.Geocoder.Reverse(r.Context(), *c)
		if err == nil {
			resp["address"] = name
			resp["fallback"] = false
		} else {
			s.logger.Debug("reverse geocoding fell back to coordinates", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{}
	if s.deps.Store != nil {
		var paths []string
		if s.config != nil {
			paths = []string{s.config.Storage.DatabasePath, s.config.Storage.KeywordIndexPath}
		}
		stats, err := storage.CollectStats(r.Context(), s.deps.Store, paths...)
		if err != nil {
			s.respondErr(w, "status: collect stats failed", err)
			return
		}
		resp["locations"] = stats.Locations
		resp["events"] = stats.Events
		resp["disk_usage_bytes"] = stats.DiskBytes
	}
	if s.deps.Keyword != nil {
		if n, err := s.deps.Keyword.DocCount(); err == nil {
			resp["keyword_entries"] = n
		}
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"store_driver":      s.config.Storage.Driver,
			"default_radius_km": s.config.Search.DefaultRadiusKm,
			"summary_limit":     s.config.Search.SummaryLimit,
			"chat_backend":      s.config.Chat.Backend,
			"geocode_enabled":   s.config.Geocode.EnabledOrDefault(),
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCatalogDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "catalog watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.deps.Watch.Directories()})
}

type catalogAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleCatalogDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "catalog watch not enabled")
		return
	}
	var req catalogAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("catalog add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.deps.Watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("catalog add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleCatalogDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "catalog watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("catalog remove directory request", zap.String("path", abs))
	if err := s.deps.Watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("catalog remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistDirectories() {
	if s.configPath == "" || s.config == nil {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Catalog.Directories = s.deps.Watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist catalog directories", zap.Error(err))
	}
}

// statusFor maps an error kind to its HTTP status. Timeout is checked before
// StoreUnavailable because a timed out store call carries both.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, models.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrPermissionDenied):
		return http.StatusPreconditionFailed
	case errors.Is(err, models.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrAIBackend):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (s *Server) respondErr(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
