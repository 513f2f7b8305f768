// Package geocode provides the device location source and reverse geocoding of coordinates into addresses.
package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/hyperjump/quanhday/internal/config"
	"github.com/hyperjump/quanhday/internal/models"
)

// Locator returns the current device coordinate.
type Locator interface {
	CurrentCoordinate(ctx context.Context) (*models.Coordinate, error)
}

// StaticLocator reports a fixed coordinate. A nil coordinate means location access is unavailable.
type StaticLocator struct {
	Coordinate *models.Coordinate
}

// CurrentCoordinate returns the fixed coordinate or ErrPermissionDenied.
func (s StaticLocator) CurrentCoordinate(context.Context) (*models.Coordinate, error) {
	if s.Coordinate == nil {
		return nil, fmt.Errorf("no device location configured: %w", models.ErrPermissionDenied)
	}
	c := *s.Coordinate
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

type nominatimReverse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Nominatim reverse geocodes coordinates with the OSM Nominatim API.
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
	logger    *zap.Logger
}

// Option configures a Nominatim client.
type Option func(*Nominatim)

// WithLogger sets the logger for lookup failures.
func WithLogger(l *zap.Logger) Option {
	return func(n *Nominatim) {
		n.logger = l
	}
}

// NewNominatim returns a client for cfg.
func NewNominatim(cfg *config.GeocodeConfig, opts ...Option) *Nominatim {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	n := &Nominatim{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: timeout},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Reverse returns the display name for c.
func (n *Nominatim) Reverse(ctx context.Context, c models.Coordinate) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	u := n.baseURL + "/reverse?" + url.Values{
		"lat":             {strconv.FormatFloat(c.Latitude, 'f', 6, 64)},
		"lon":             {strconv.FormatFloat(c.Longitude, 'f', 6, 64)},
		"format":          {"jsonv2"},
		"accept-language": {"vi,en"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocoding returned status %d", resp.StatusCode)
	}
	var result nominatimReverse
	if err := jsoniter.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding reverse geocoding response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("reverse geocoding: %s", result.Error)
	}
	if result.DisplayName == "" {
		return "", fmt.Errorf("no address for %s", c)
	}
	return result.DisplayName, nil
}

// Describe returns the address of c, or "lat, lng" when the lookup fails.
func (n *Nominatim) Describe(ctx context.Context, c models.Coordinate) string {
	name, err := n.Reverse(ctx, c)
	if err != nil {
		n.logger.Debug("reverse geocoding failed", zap.String("coordinate", c.String()), zap.Error(err))
		return c.String()
	}
	return name
}

// RawDescriber formats coordinates without a lookup.
type RawDescriber struct{}

// Describe returns "lat, lng".
func (RawDescriber) Describe(_ context.Context, c models.Coordinate) string {
	return c.String()
}
