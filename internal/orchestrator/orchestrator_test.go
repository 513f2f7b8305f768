package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hyperjump/quanhday/internal/config"
	"github.com/hyperjump/quanhday/internal/models"
)

type fakeFinder struct {
	locations []*models.SearchResult
	events    []*models.SearchResult
	locErr    error
	evErr     error
	calls     []string
	radius    float64
	category  string
}

func (f *fakeFinder) FindNearby(_ context.Context, collection string, _ models.Coordinate, radiusKm float64, category string) ([]*models.SearchResult, error) {
	f.calls = append(f.calls, collection)
	f.radius, f.category = radiusKm, category
	return f.locations, f.locErr
}

func (f *fakeFinder) LiveEventsNearby(_ context.Context, _ models.Coordinate, radiusKm float64, category string) ([]*models.SearchResult, error) {
	f.calls = append(f.calls, "live")
	f.radius, f.category = radiusKm, category
	return f.events, f.evErr
}

func loc(id string, km float64) *models.SearchResult {
	return &models.SearchResult{
		Type:           models.SearchTypeLocation,
		Location:       &models.Location{GeoEntity: models.GeoEntity{ID: id, Category: "Quán Cafe"}, Name: id, Address: id + " street"},
		DistanceMeters: km * 1000,
	}
}

func event(id string, km float64) *models.SearchResult {
	return &models.SearchResult{
		Type:           models.SearchTypeEvent,
		Event:          &models.Event{GeoEntity: models.GeoEntity{ID: id, Category: "Âm nhạc"}, Title: id},
		DistanceMeters: km * 1000,
	}
}

var here = &models.Coordinate{Latitude: 10.7769, Longitude: 106.7009}

func TestHandleSearchIntent_MissingCoordinate(t *testing.T) {
	f := &fakeFinder{}
	out := New(f, nil).HandleSearchIntent(context.Background(), &models.ParsedIntent{RadiusKm: 5}, nil)
	if out.Success {
		t.Error("expected failure without a coordinate")
	}
	if out.Message != MissingLocationMessage {
		t.Errorf("message = %q", out.Message)
	}
	if !errors.Is(out.Err, models.ErrPermissionDenied) {
		t.Errorf("err = %v", out.Err)
	}
	if len(f.calls) != 0 {
		t.Errorf("no query expected, got %v", f.calls)
	}
}

func TestHandleSearchIntent_ConcatenatesWithoutResorting(t *testing.T) {
	f := &fakeFinder{
		locations: []*models.SearchResult{loc("A", 2), loc("B", 6)},
		events:    []*models.SearchResult{event("C", 1)},
	}
	out := New(f, nil).HandleSearchIntent(context.Background(), &models.ParsedIntent{RadiusKm: 10}, here)
	if !out.Success {
		t.Fatalf("unexpected failure: %v", out.Err)
	}
	var names []string
	for _, r := range out.Results {
		names = append(names, r.Name())
	}
	if strings.Join(names, ",") != "A,B,C" {
		t.Errorf("order = %v, want [A B C]", names)
	}
	if strings.Join(f.calls, ",") != "locations,live" {
		t.Errorf("calls = %v", f.calls)
	}
}

func TestHandleSearchIntent_SearchTypeSelectsCollections(t *testing.T) {
	f := &fakeFinder{locations: []*models.SearchResult{loc("A", 1)}}
	New(f, nil).HandleSearchIntent(context.Background(),
		&models.ParsedIntent{RadiusKm: 3, Category: "Quán Cafe", SearchType: models.SearchTypeLocation}, here)
	if strings.Join(f.calls, ",") != "locations" {
		t.Errorf("location intent calls = %v", f.calls)
	}
	if f.radius != 3 || f.category != "Quán Cafe" {
		t.Errorf("forwarded radius=%v category=%q", f.radius, f.category)
	}

	f = &fakeFinder{}
	New(f, nil).HandleSearchIntent(context.Background(), &models.ParsedIntent{SearchType: models.SearchTypeEvent}, here)
	if strings.Join(f.calls, ",") != "live" {
		t.Errorf("event intent calls = %v", f.calls)
	}
	if f.radius != models.DefaultRadiusKm {
		t.Errorf("zero radius should default, got %v", f.radius)
	}
}

func TestHandleSearchIntent_StoreFailure(t *testing.T) {
	f := &fakeFinder{
		locations: []*models.SearchResult{loc("A", 1)},
		evErr:     fmt.Errorf("query: %w", models.ErrStoreUnavailable),
	}
	out := New(f, nil).HandleSearchIntent(context.Background(), &models.ParsedIntent{}, here)
	if out.Success {
		t.Error("expected failure")
	}
	if len(out.Results) != 0 {
		t.Errorf("partial results leaked: %d", len(out.Results))
	}
	if !errors.Is(out.Err, models.ErrStoreUnavailable) || out.Message != StoreFailureMessage {
		t.Errorf("got err=%v message=%q", out.Err, out.Message)
	}
}

func TestHandleSearchIntent_InvalidRadius(t *testing.T) {
	f := &fakeFinder{}
	out := New(f, nil).HandleSearchIntent(context.Background(), &models.ParsedIntent{RadiusKm: -1}, here)
	if out.Success || !errors.Is(out.Err, models.ErrInvalidArgument) || out.Message != InvalidRequestMessage {
		t.Errorf("got %+v", out)
	}
	if len(f.calls) != 0 {
		t.Errorf("no query expected, got %v", f.calls)
	}
}

func TestHandleSearchIntent_DefaultRadiusLeavesCallerIntent(t *testing.T) {
	f := &fakeFinder{}
	intent := &models.ParsedIntent{Category: "Quán Cafe", SearchType: models.SearchTypeLocation}
	out := New(f, nil).HandleSearchIntent(context.Background(), intent, here)
	if !out.Success {
		t.Fatalf("unexpected failure: %v", out.Err)
	}
	if f.radius != models.DefaultRadiusKm {
		t.Errorf("searched radius = %v, want default %v", f.radius, models.DefaultRadiusKm)
	}
	if intent.RadiusKm != 0 {
		t.Errorf("caller intent radius = %v, want it left at 0", intent.RadiusKm)
	}
	if out.Intent == intent || out.Intent.RadiusKm != models.DefaultRadiusKm {
		t.Errorf("outcome intent = %+v, want a copy carrying the effective radius", out.Intent)
	}
}

func TestHandleSearchIntent_NoResults(t *testing.T) {
	out := New(&fakeFinder{}, nil).HandleSearchIntent(context.Background(), &models.ParsedIntent{RadiusKm: 5}, here)
	if !out.Success {
		t.Fatal("empty result set is still a success")
	}
	want := "Không tìm thấy kết quả nào trong bán kính 5 km. Bạn thử mở rộng bán kính tìm kiếm nhé!"
	if out.Message != want {
		t.Errorf("message = %q", out.Message)
	}
}

func TestFormatSummary(t *testing.T) {
	noAddr := loc("D", 0.24)
	noAddr.Location.Address = ""
	results := []*models.SearchResult{loc("A", 1.26), event("C", 3), noAddr}
	got := FormatSummary(results, 5, 10)

	for _, want := range []string{
		"Tìm thấy 3 kết quả gần bạn:",
		"1. A - 1.3 km",
		"Danh mục: Quán Cafe",
		"Địa chỉ: A street",
		"2. C - 3.0 km",
		"Danh mục: Âm nhạc",
		"3. D - 0.2 km",
		"Địa chỉ: " + addressPlaceholder,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "kết quả khác") {
		t.Errorf("no remainder line expected:\n%s", got)
	}
}

func TestFormatSummary_Capped(t *testing.T) {
	var results []*models.SearchResult
	for i := 0; i < 13; i++ {
		results = append(results, loc(fmt.Sprintf("L%d", i+1), float64(i)))
	}
	got := FormatSummary(results, 10, 10)
	if !strings.Contains(got, "10. L10") || strings.Contains(got, "11. L11") {
		t.Errorf("expected exactly 10 entries:\n%s", got)
	}
	if !strings.HasSuffix(got, "...và 3 kết quả khác.") {
		t.Errorf("missing remainder:\n%s", got)
	}
}

func TestNew_SummaryLimitFromConfig(t *testing.T) {
	var results []*models.SearchResult
	for i := 0; i < 4; i++ {
		results = append(results, loc(fmt.Sprintf("L%d", i+1), 1))
	}
	o := New(&fakeFinder{locations: results}, &config.SearchConfig{SummaryLimit: 2})
	out := o.HandleSearchIntent(context.Background(), &models.ParsedIntent{SearchType: models.SearchTypeLocation}, here)
	if !strings.Contains(out.Message, "...và 2 kết quả khác.") {
		t.Errorf("summary limit not applied:\n%s", out.Message)
	}
}
