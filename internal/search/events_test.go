package search

import (
	"context"
	"testing"
	"time"

	"github.com/hyperjump/quanhday/internal/config"
	"github.com/hyperjump/quanhday/internal/models"
	"github.com/hyperjump/quanhday/internal/storage"
)

func TestIsLive(t *testing.T) {
	start := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)
	bounded := &models.Event{StartAt: start, EndAt: &end}
	open := &models.Event{StartAt: start}

	tests := []struct {
		name string
		ev   *models.Event
		now  time.Time
		want bool
	}{
		{"before start", bounded, start.Add(-time.Second), false},
		{"at start", bounded, start, true},
		{"during", bounded, start.Add(time.Hour), true},
		{"at end", bounded, end, true},
		{"sub-second past end", bounded, end.Add(500 * time.Millisecond), true},
		{"after end", bounded, end.Add(time.Second), false},
		{"open ended after start", open, start.Add(240 * time.Hour), true},
		{"open ended before start", open, start.Add(-time.Minute), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLive(tt.ev, tt.now); got != tt.want {
				t.Errorf("IsLive = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLiveEventsNearby(t *testing.T) {
	now := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	ended := now.Add(-time.Hour)
	later := now.Add(time.Hour)
	putEvent(t, store, "live-far", "Live far", offset(hanoi, 0, 4000), now.Add(-2*time.Hour), &later)
	putEvent(t, store, "live-near", "Live near", offset(hanoi, 90, 1000), now.Add(-time.Hour), nil)
	putEvent(t, store, "ended", "Ended", offset(hanoi, 180, 500), now.Add(-3*time.Hour), &ended)
	putEvent(t, store, "future", "Future", offset(hanoi, 270, 500), now.Add(time.Hour), nil)
	putEvent(t, store, "live-out", "Live outside", offset(hanoi, 0, 20000), now.Add(-time.Hour), nil)

	engine := NewEngine(store, nil, WithClock(func() time.Time { return now }))
	results, err := engine.LiveEventsNearby(context.Background(), hanoi, 5, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 live events, got %d", len(results))
	}
	if results[0].Event.ID != "live-near" || results[1].Event.ID != "live-far" {
		t.Errorf("expected distance order [live-near live-far], got [%s %s]", results[0].Event.ID, results[1].Event.ID)
	}
	if results[0].Type != models.SearchTypeEvent {
		t.Errorf("type = %s", results[0].Type)
	}
}

func TestUpcomingEvents(t *testing.T) {
	now := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	putEvent(t, store, "past", "Past", hanoi, now.Add(-time.Hour), nil)
	putEvent(t, store, "third", "Third", offset(hanoi, 0, 100000), now.Add(72*time.Hour), nil)
	putEvent(t, store, "first", "First", hanoi, now.Add(time.Hour), nil)
	putEvent(t, store, "second", "Second", offset(hanoi, 0, 500000), now.Add(24*time.Hour), nil)

	engine := NewEngine(store, &config.SearchConfig{UpcomingLimit: 10}, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	events, err := engine.UpcomingEvents(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].ID != "first" || events[1].ID != "second" {
		t.Errorf("got %v", eventIDs(events))
	}

	events, err = engine.UpcomingEvents(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := eventIDs(events); len(got) != 3 || got[2] != "third" {
		t.Errorf("default limit: got %v", got)
	}
}

func TestGetByID(t *testing.T) {
	store := storage.NewMemoryStore()
	putLocation(t, store, "loc1", "Cafe", "Quán Cafe", hanoi)
	putEvent(t, store, "ev1", "Show", hanoi, time.Now(), nil)
	engine := NewEngine(store, nil)
	ctx := context.Background()

	loc, err := engine.GetLocation(ctx, "loc1")
	if err != nil || loc == nil || loc.Name != "Cafe" || loc.ID != "loc1" {
		t.Errorf("GetLocation = %+v, %v", loc, err)
	}
	ev, err := engine.GetEvent(ctx, "ev1")
	if err != nil || ev == nil || ev.Title != "Show" {
		t.Errorf("GetEvent = %+v, %v", ev, err)
	}
	missing, err := engine.GetLocation(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("missing location: %+v, %v", missing, err)
	}
}

func eventIDs(events []*models.Event) []string {
	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	return ids
}
