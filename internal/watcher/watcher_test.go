package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/quanhday/internal/catalog"
	"github.com/hyperjump/quanhday/internal/config"
	"github.com/hyperjump/quanhday/internal/models"
	"github.com/hyperjump/quanhday/internal/storage"
)

type recordingImporter struct {
	mu        sync.Mutex
	imported  []string
	forgotten []string
}

func (r *recordingImporter) ImportFile(_ context.Context, path string) (*catalog.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imported = append(r.imported, path)
	return &catalog.Stats{Files: 1}, nil
}

func (r *recordingImporter) Forget(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forgotten = append(r.forgotten, path)
}

func (r *recordingImporter) importedPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.imported...)
}

func (r *recordingImporter) forgottenPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.forgotten...)
}

func catalogConfig(dirs ...string) *config.CatalogConfig {
	return &config.CatalogConfig{
		Directories: dirs,
		Extensions:  []string{".yaml", ".json"},
		Debounce:    100 * time.Millisecond,
	}
}

func hasSuffix(paths []string, suffix string) bool {
	for _, p := range paths {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	w := New(&recordingImporter{}, catalogConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || filepath.Clean(dirs[0]) != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}

	if err := w.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 0 {
		t.Errorf("after remove: %v", w.Directories())
	}
}

func TestWatcher_DebouncesWritesAndFiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	imp := &recordingImporter{}
	w := New(imp, catalogConfig(dir))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "hanoi.yaml")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte(strings.Repeat("x", i+1)), 0600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0600); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, func() bool { return hasSuffix(imp.importedPaths(), "hanoi.yaml") }) {
		t.Fatalf("hanoi.yaml not imported, got %v", imp.importedPaths())
	}
	time.Sleep(300 * time.Millisecond)
	got := imp.importedPaths()
	if len(got) != 1 {
		t.Errorf("expected a single debounced import, got %v", got)
	}
	if hasSuffix(got, "notes.txt") {
		t.Error("notes.txt should be ignored")
	}
}

func TestWatcher_RemoveForgetsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.json")
	if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	imp := &recordingImporter{}
	w := New(imp, catalogConfig(dir))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return hasSuffix(imp.forgottenPaths(), "gone.json") }) {
		t.Errorf("expected gone.json to be forgotten, got %v", imp.forgottenPaths())
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.yaml", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestWatcher_Sync_importsMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("locations: []"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignore.xyz"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	imp := &recordingImporter{}
	w := New(imp, catalogConfig(dir))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	stats := w.Sync()
	if stats.Files != 1 {
		t.Errorf("Sync stats = %+v", stats)
	}
	got := imp.importedPaths()
	if len(got) != 1 || !strings.HasSuffix(got[0], "a.yaml") {
		t.Errorf("expected one imported file a.yaml, got %v", got)
	}
}

func TestWatcher_Sync_nonRecursiveSkipsSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "deep.yaml"), []byte("locations: []"), 0600); err != nil {
		t.Fatal(err)
	}
	recursive := false
	cfg := catalogConfig(dir)
	cfg.Recursive = &recursive
	imp := &recordingImporter{}
	w := New(imp, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if stats := w.Sync(); stats.Files != 0 {
		t.Errorf("non-recursive sync imported %+v", stats)
	}
}

func TestWatcher_Start_createsMissingRootDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "catalog", "hanoi")
	w := New(&recordingImporter{}, catalogConfig(root))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestWatcher_NewDirectory_importsNestedFiles(t *testing.T) {
	dir := t.TempDir()
	imp := &recordingImporter{}
	w := New(imp, catalogConfig(dir))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	nested := filepath.Join(dir, "level1", "level2")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "deep.yaml"), []byte("locations: []"), 0600); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return hasSuffix(imp.importedPaths(), "deep.yaml") }) {
		t.Errorf("expected deep.yaml to be imported, got %v", imp.importedPaths())
	}
}

func TestWatcher_ImportsIntoStore(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewMemoryStore()
	w := New(catalog.NewImporter(store), catalogConfig(dir))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	content := `locations:
  - id: hoan-kiem
    name: Hồ Hoàn Kiếm
    category: Công viên
    location:
      latitude: 21.0287
      longitude: 105.8524
`
	if err := os.WriteFile(filepath.Join(dir, "lake.yaml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	ok := waitFor(t, func() bool {
		_, found, err := store.GetByID(context.Background(), models.CollectionLocations, "hoan-kiem")
		return err == nil && found
	})
	if !ok {
		t.Error("lake.yaml was not imported into the store")
	}
}
