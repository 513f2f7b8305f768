// Package config provides configuration loading and structs for the quanhday server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/quanhday/internal/models"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Search   SearchConfig   `yaml:"search"`
	Chat     ChatConfig     `yaml:"chat"`
	Geocode  GeocodeConfig  `yaml:"geocode"`
	Location LocationConfig `yaml:"location"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects the document store backend and holds per-backend settings.
type StorageConfig struct {
	// Driver is one of memory, sqlite, postgres, redis, firestore.
	Driver       string `yaml:"driver"`
	DatabasePath string `yaml:"database_path"`
	// KeywordIndexPath is the Bleve index directory; empty keeps the index in memory.
	KeywordIndexPath string          `yaml:"keyword_index_path"`
	Postgres         PostgresConfig  `yaml:"postgres"`
	Redis            RedisConfig     `yaml:"redis"`
	Firestore        FirestoreConfig `yaml:"firestore"`
}

// PostgresConfig holds the pgx pool settings.
type PostgresConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

// RedisConfig holds the redis client settings. Prefix namespaces every key.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// FirestoreConfig holds the Firebase project settings.
type FirestoreConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

// SearchConfig holds nearby search settings.
type SearchConfig struct {
	DefaultRadiusKm float64 `yaml:"default_radius_km"`
	// SummaryLimit caps how many results the chat summary lists.
	SummaryLimit  int `yaml:"summary_limit"`
	UpcomingLimit int `yaml:"upcoming_limit"`
	// QueryTimeout bounds one FindNearby or UpcomingEvents call; zero disables it.
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// ChatConfig holds the conversational backend settings.
type ChatConfig struct {
	// Backend is gemini or offline.
	Backend      string        `yaml:"backend"`
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"api_key"`
	Timeout      time.Duration `yaml:"timeout"`
	Temperature  float64       `yaml:"temperature"`
	HistoryTurns int           `yaml:"history_turns"`
	SystemPrompt string        `yaml:"system_prompt"`
}

// GeocodeConfig holds the Nominatim reverse geocoder settings.
type GeocodeConfig struct {
	Enabled   *bool         `yaml:"enabled"`
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

// EnabledOrDefault returns whether reverse geocoding is on; defaults to true when unset.
func (g *GeocodeConfig) EnabledOrDefault() bool {
	if g.Enabled != nil {
		return *g.Enabled
	}
	return true
}

// LocationConfig is a fixed device coordinate used when a request carries none.
type LocationConfig struct {
	Latitude  *float64 `yaml:"latitude"`
	Longitude *float64 `yaml:"longitude"`
}

// Coordinate returns the configured coordinate, or nil when either component is unset.
func (l *LocationConfig) Coordinate() *models.Coordinate {
	if l.Latitude == nil || l.Longitude == nil {
		return nil
	}
	return &models.Coordinate{Latitude: *l.Latitude, Longitude: *l.Longitude}
}

// CatalogConfig holds catalog import and watch settings.
type CatalogConfig struct {
	Directories []string      `yaml:"directories"`
	Extensions  []string      `yaml:"extensions"`
	Recursive   *bool         `yaml:"recursive"`
	Watch       bool          `yaml:"watch"`
	Debounce    time.Duration `yaml:"debounce"`
}

// RecursiveOrDefault returns whether to walk directories recursively; defaults to true when unset.
func (c *CatalogConfig) RecursiveOrDefault() bool {
	if c.Recursive != nil {
		return *c.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies defaults and environment
// overrides, and expands paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	cfg.Storage.Firestore.CredentialsFile = expandPath(cfg.Storage.Firestore.CredentialsFile, configDir)
	for i := range cfg.Catalog.Directories {
		cfg.Catalog.Directories[i] = expandPath(cfg.Catalog.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths and ":memory:" are kept.
func expandPath(path string, configDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
