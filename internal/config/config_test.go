package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  driver: sqlite
  database_path: "test.db"
search:
  query_timeout: 3s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Search.QueryTimeout != 3*time.Second {
		t.Errorf("query_timeout = %v, want 3s", cfg.Search.QueryTimeout)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/quanhday.db"
catalog:
  directories: ["./catalog"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "quanhday.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	if len(cfg.Catalog.Directories) != 1 || cfg.Catalog.Directories[0] != filepath.Join(dir, "catalog") {
		t.Errorf("catalog directories = %v", cfg.Catalog.Directories)
	}
	if cfg.Storage.KeywordIndexPath != "" {
		t.Errorf("empty keyword index path should stay empty, got %q", cfg.Storage.KeywordIndexPath)
	}
}

func TestLoad_memoryDatabaseKept(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  database_path: \":memory:\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.DatabasePath != ":memory:" {
		t.Errorf("database_path = %q", cfg.Storage.DatabasePath)
	}
}

func TestLoad_envOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("chat:\n  api_key: from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("QUANHDAY_STORE_DRIVER", "memory")
	t.Setenv("QUANHDAY_PORT", "9191")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chat.APIKey != "from-env" {
		t.Errorf("api key = %q, want from-env", cfg.Chat.APIKey)
	}
	if cfg.Storage.Driver != DriverMemory {
		t.Errorf("driver = %q, want memory", cfg.Storage.Driver)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("port = %d, want 9191", cfg.Server.Port)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("default server: got %+v", cfg.Server)
	}
	if cfg.Storage.Driver != DriverSQLite {
		t.Errorf("default driver: got %s", cfg.Storage.Driver)
	}
	if cfg.Search.DefaultRadiusKm != 10 {
		t.Errorf("default radius: got %v", cfg.Search.DefaultRadiusKm)
	}
	if cfg.Search.SummaryLimit != 10 || cfg.Search.UpcomingLimit != 10 {
		t.Errorf("default limits: got %+v", cfg.Search)
	}
	if cfg.Chat.Backend != BackendGemini || cfg.Chat.HistoryTurns != 20 {
		t.Errorf("default chat: got %+v", cfg.Chat)
	}
	if len(cfg.Catalog.Extensions) != 4 || cfg.Catalog.Extensions[3] != ".xlsx" {
		t.Errorf("catalog extensions: got %v", cfg.Catalog.Extensions)
	}
	if !cfg.Geocode.EnabledOrDefault() {
		t.Error("geocode should default to enabled")
	}
}

func TestApplyDefaults_CatalogRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Catalog: CatalogConfig{Directories: []string{"/tmp/catalog"}}}
	ApplyDefaults(cfg)
	if cfg.Catalog.Recursive == nil || !*cfg.Catalog.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestLocationConfig_Coordinate(t *testing.T) {
	if (&LocationConfig{}).Coordinate() != nil {
		t.Error("unset location should be nil")
	}
	lat, lng := 21.0285, 105.8542
	c := (&LocationConfig{Latitude: &lat, Longitude: &lng}).Coordinate()
	if c == nil || c.Latitude != lat || c.Longitude != lng {
		t.Errorf("Coordinate() = %+v", c)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
		Search:  SearchConfig{QueryTimeout: 2 * time.Second},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Search.QueryTimeout != 2*time.Second {
		t.Errorf("loaded timeout: got %v", loaded.Search.QueryTimeout)
	}
}
