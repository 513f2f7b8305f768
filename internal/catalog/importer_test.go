package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/quanhday/internal/geo"
	"github.com/hyperjump/quanhday/internal/keyword"
	"github.com/hyperjump/quanhday/internal/models"
	"github.com/hyperjump/quanhday/internal/storage"
)

const sampleYAML = `locations:
  - id: cafe-giang
    name: Cafe Giảng
    category: Quán Cafe
    address: 39 Nguyễn Hữu Huân, Hoàn Kiếm
    location:
      latitude: 21.0334
      longitude: 105.8545
  - name: Phở Thìn
    category: Nhà hàng
    location:
      latitude: 21.0180
      longitude: 105.8553
events:
  - id: jazz-night
    title: Jazz Night
    category: Âm nhạc
    startAt: "2026-10-17T19:00:00Z"
    endAt: "2026-10-17T22:00:00Z"
    location:
      latitude: 21.0245
      longitude: 105.8412
`

const sampleJSON = `{
  "locations": [
    {"id": "bad", "name": "Nowhere", "location": {"latitude": 95, "longitude": 10}},
    {"id": "lake", "name": "Hồ Gươm", "category": "Công viên", "location": {"latitude": 21.0287, "longitude": 105.8524}}
  ],
  "events": [
    {"id": "no-start", "title": "Broken", "location": {"latitude": 21, "longitude": 105}}
  ]
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestParse_YAMLAndJSON(t *testing.T) {
	f, err := Parse("catalog.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Locations) != 2 || len(f.Events) != 1 {
		t.Fatalf("got %d locations, %d events", len(f.Locations), len(f.Events))
	}
	if f.Events[0].StartAt != "2026-10-17T19:00:00Z" {
		t.Errorf("startAt = %q", f.Events[0].StartAt)
	}

	f, err = Parse("catalog.JSON", []byte(sampleJSON))
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Locations) != 2 || f.Locations[1].Location.Latitude != 21.0287 {
		t.Errorf("unexpected json parse: %+v", f.Locations)
	}

	if _, err := Parse("bad.json", []byte("{")); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestImportFile_StampsGeohashAndCreatedAt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hanoi.yaml")
	writeFile(t, path, sampleYAML)

	store := storage.NewMemoryStore()
	created := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	im := NewImporter(store, WithClock(fixedClock(created)))
	ctx := context.Background()

	stats, err := im.ImportFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Files != 1 || stats.Locations != 2 || stats.Events != 1 || stats.Rejected != 0 {
		t.Errorf("stats = %+v", stats)
	}

	snap, found, err := store.GetByID(ctx, models.CollectionLocations, "cafe-giang")
	if err != nil || !found {
		t.Fatalf("GetByID: found=%v err=%v", found, err)
	}
	var loc models.Location
	if err := snap.DataTo(&loc); err != nil {
		t.Fatal(err)
	}
	if want := geo.Encode(loc.Location); loc.Geohash != want {
		t.Errorf("geohash = %q, want %q", loc.Geohash, want)
	}
	if !loc.CreatedAt.Equal(created) {
		t.Errorf("createdAt = %v, want %v", loc.CreatedAt, created)
	}

	snap, found, err = store.GetByID(ctx, models.CollectionEvents, "jazz-night")
	if err != nil || !found {
		t.Fatalf("GetByID event: found=%v err=%v", found, err)
	}
	var ev models.Event
	if err := snap.DataTo(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.EndAt == nil || ev.EndAt.Sub(ev.StartAt) != 3*time.Hour {
		t.Errorf("event window = %v..%v", ev.StartAt, ev.EndAt)
	}
}

func TestImportFile_ReimportDoesNotDuplicate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hanoi.yaml")
	writeFile(t, path, sampleYAML)

	store := storage.NewMemoryStore()
	first := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	im := NewImporter(store, WithClock(fixedClock(first)))
	ctx := context.Background()
	if _, err := im.ImportFile(ctx, path); err != nil {
		t.Fatal(err)
	}

	stats, err := im.ImportFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 1 || stats.Locations != 0 {
		t.Errorf("unchanged file should be skipped, got %+v", stats)
	}

	// A new importer (a server restart) has no file state; ids keep the records unique and createdAt is kept.
	for day := 1; day <= 2; day++ {
		restarted := NewImporter(store, WithClock(fixedClock(first.Add(time.Duration(day)*24*time.Hour))))
		if _, err := restarted.ImportFile(ctx, path); err != nil {
			t.Fatal(err)
		}
	}
	snaps, err := store.Query(ctx, models.CollectionLocations, storage.GeohashRange("0", "~"))
	if err != nil {
		t.Fatal(err)
	}
	ids := map[string]int{}
	for _, s := range snaps {
		ids[s.ID]++
	}
	if ids["cafe-giang"] != 1 {
		t.Errorf("cafe-giang stored %d times", ids["cafe-giang"])
	}
	if len(snaps) != 2 {
		t.Errorf("expected 2 location documents after 3 full imports, got %d", len(snaps))
	}
	for _, s := range snaps {
		var loc models.Location
		if err := s.DataTo(&loc); err != nil {
			t.Fatal(err)
		}
		if !loc.CreatedAt.Equal(first) {
			t.Errorf("%s (%s): createdAt changed on re-import: %v", loc.Name, s.ID, loc.CreatedAt)
		}
	}

	snap, _, _ := store.GetByID(ctx, models.CollectionLocations, "cafe-giang")
	var loc models.Location
	if err := snap.DataTo(&loc); err != nil {
		t.Fatal(err)
	}
	if !loc.CreatedAt.Equal(first) {
		t.Errorf("createdAt changed on re-import: %v", loc.CreatedAt)
	}
}

func TestImportFile_RejectsInvalidRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mixed.json")
	writeFile(t, path, sampleJSON)

	store := storage.NewMemoryStore()
	im := NewImporter(store)
	ctx := context.Background()

	stats, err := im.ImportFile(ctx, path)
	if !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if stats.Locations != 1 || stats.Rejected != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if _, found, _ := store.GetByID(ctx, models.CollectionLocations, "bad"); found {
		t.Error("out-of-range location must not be stored")
	}
	if _, found, _ := store.GetByID(ctx, models.CollectionLocations, "lake"); !found {
		t.Error("valid location in the same file should be stored")
	}
}

func TestImport_EventValidation(t *testing.T) {
	c := &models.Coordinate{Latitude: 21, Longitude: 105}
	tests := []struct {
		name string
		rec  EventRecord
	}{
		{"no title", EventRecord{Location: c, StartAt: "2026-10-17T19:00:00Z"}},
		{"no location", EventRecord{Title: "x", StartAt: "2026-10-17T19:00:00Z"}},
		{"bad start", EventRecord{Title: "x", Location: c, StartAt: "tomorrow"}},
		{"bad end", EventRecord{Title: "x", Location: c, StartAt: "2026-10-17T19:00:00Z", EndAt: "later"}},
		{"end before start", EventRecord{Title: "x", Location: c, StartAt: "2026-10-17T19:00:00Z", EndAt: "2026-10-17T18:00:00Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.rec.toModel(); !errors.Is(err, models.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestImportDirectory_ExtensionsAndRecursion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), sampleYAML)
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a catalog")
	writeFile(t, filepath.Join(dir, "sub", "b.json"), `{"locations":[{"id":"sub-loc","name":"Sub","location":{"latitude":10.77,"longitude":106.70}}]}`)

	ctx := context.Background()
	exts := []string{".yaml", ".json"}

	store := storage.NewMemoryStore()
	stats, err := NewImporter(store).ImportDirectory(ctx, dir, exts, false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Files != 1 || stats.Locations != 2 {
		t.Errorf("non-recursive stats = %+v", stats)
	}

	store = storage.NewMemoryStore()
	stats, err = NewImporter(store).ImportDirectory(ctx, dir, exts, true)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Files != 2 || stats.Locations != 3 || stats.Events != 1 {
		t.Errorf("recursive stats = %+v", stats)
	}
	if _, found, _ := store.GetByID(ctx, models.CollectionLocations, "sub-loc"); !found {
		t.Error("sub-loc not imported")
	}

	if _, err := NewImporter(store).ImportDirectory(ctx, filepath.Join(dir, "a.yaml"), exts, true); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for a file path, got %v", err)
	}
}

func TestImportFile_UpdatesKeywordIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hanoi.yaml")
	writeFile(t, path, sampleYAML)

	idx, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	ctx := context.Background()
	im := NewImporter(storage.NewMemoryStore(), WithKeywordIndex(idx))
	if _, err := im.ImportFile(ctx, path); err != nil {
		t.Fatal(err)
	}
	n, err := idx.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("DocCount = %d, want 3", n)
	}
	res, err := idx.Search(ctx, "jazz", models.CollectionEvents, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Hits) != 1 || res.Hits[0].ID != "jazz-night" {
		t.Errorf("hits = %+v", res.Hits)
	}
}

func TestForget_AllowsReimport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hanoi.yaml")
	writeFile(t, path, sampleYAML)

	im := NewImporter(storage.NewMemoryStore())
	ctx := context.Background()
	if _, err := im.ImportFile(ctx, path); err != nil {
		t.Fatal(err)
	}
	im.Forget(path)
	stats, err := im.ImportFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 0 || stats.Locations != 2 {
		t.Errorf("stats after Forget = %+v", stats)
	}
}

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		path string
		exts []string
		want bool
	}{
		{"a.yaml", []string{".yaml", ".json"}, true},
		{"a.YML", []string{"yml"}, true},
		{"a.txt", []string{".yaml"}, false},
		{"noext", []string{".yaml"}, false},
		{"anything.bin", nil, true},
	}
	for _, tt := range tests {
		if got := ExtensionAllowed(tt.path, tt.exts); got != tt.want {
			t.Errorf("ExtensionAllowed(%q, %v) = %v, want %v", tt.path, tt.exts, got, tt.want)
		}
	}
}

func TestImport_RecordsWithoutIDGetStableIDs(t *testing.T) {
	f := func() *File {
		return &File{
			Locations: []LocationRecord{
				{Name: "Cafe Giảng", Category: "Quán Cafe", Location: &models.Coordinate{Latitude: 21.0334, Longitude: 105.8545}},
				{Name: "Cafe Giảng", Category: "Quán Cafe", Location: &models.Coordinate{Latitude: 10.7769, Longitude: 106.7009}},
			},
			Events: []EventRecord{
				{Title: "Jazz Night", StartAt: "2026-10-17T19:00:00Z", Location: &models.Coordinate{Latitude: 21.0245, Longitude: 105.8412}},
				{Title: "Jazz Night", StartAt: "2026-10-24T19:00:00Z", Location: &models.Coordinate{Latitude: 21.0245, Longitude: 105.8412}},
			},
		}
	}
	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := NewImporter(store).Import(ctx, f()); err != nil {
			t.Fatal(err)
		}
	}

	locs, err := store.Query(ctx, models.CollectionLocations, storage.GeohashRange("0", "~"))
	if err != nil {
		t.Fatal(err)
	}
	if len(locs) != 2 {
		t.Errorf("same-name venues at two places: got %d documents, want 2", len(locs))
	}
	events, err := store.Query(ctx, models.CollectionEvents, storage.GeohashRange("0", "~"))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("recurring event on two dates: got %d documents, want 2", len(events))
	}

	a := recordID(models.CollectionLocations, "Cafe Giảng", "w7er8u0evs")
	if a != recordID(models.CollectionLocations, "Cafe Giảng", "w7er8u0evs") {
		t.Error("recordID is not deterministic")
	}
	if a == recordID(models.CollectionEvents, "Cafe Giảng", "w7er8u0evs") {
		t.Error("recordID should differ across collections")
	}
}
