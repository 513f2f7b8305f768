// Package cli provides output writers for the quanhday command line.
package cli

import (
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/hyperjump/quanhday/internal/catalog"
	"github.com/hyperjump/quanhday/internal/chat"
	"github.com/hyperjump/quanhday/internal/keyword"
	"github.com/hyperjump/quanhday/internal/models"
	"github.com/hyperjump/quanhday/internal/storage"
	"github.com/hyperjump/quanhday/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const rule = "─────────────────────────────────────────────────────────"

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteResults writes nearby search results, nearest first as given.
func WriteResults(w io.Writer, results []*models.SearchResult, format OutputFormat) error {
	if format == OutputJSON {
		if results == nil {
			results = []*models.SearchResult{}
		}
		return writeJSON(w, map[string]interface{}{"results": results, "count": len(results)})
	}
	fmt.Fprintf(w, "\nFound %d results\n\n", len(results))
	for i, r := range results {
		writeResult(w, i+1, r)
	}
	return nil
}

func writeResult(w io.Writer, rank int, r *models.SearchResult) {
	e := r.Entity()
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%d. [%s] %s | %.2f km\n", rank, r.Type, r.Name(), r.DistanceKm())
	fmt.Fprintf(w, "ID: %s\n", e.ID)
	if e.Category != "" {
		fmt.Fprintf(w, "Category: %s\n", e.Category)
	}
	if addr := r.Address(); addr != "" {
		fmt.Fprintf(w, "Address: %s\n", addr)
	}
	if r.Event != nil {
		writeWindow(w, r.Event)
	}
	fmt.Fprintln(w)
}

func writeWindow(w io.Writer, ev *models.Event) {
	end := "open"
	if ev.EndAt != nil {
		end = ev.EndAt.Local().Format(time.DateTime)
	}
	fmt.Fprintf(w, "When: %s → %s\n", ev.StartAt.Local().Format(time.DateTime), end)
}

// WriteOutcome writes the result of a search intent. Text output is the user-facing message.
func WriteOutcome(w io.Writer, outcome *models.SearchOutcome, format OutputFormat) error {
	if format == OutputJSON {
		out := struct {
			*models.SearchOutcome
			Error string `json:"error,omitempty"`
		}{SearchOutcome: outcome}
		if outcome.Err != nil {
			out.Error = outcome.Err.Error()
		}
		return writeJSON(w, out)
	}
	if outcome.Intent != nil {
		writeIntentLine(w, outcome.Intent)
	}
	fmt.Fprintln(w, outcome.Message)
	return nil
}

// WriteIntent writes a parsed intent.
func WriteIntent(w io.Writer, in *models.ParsedIntent, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, in)
	}
	writeIntentLine(w, in)
	return nil
}

func writeIntentLine(w io.Writer, in *models.ParsedIntent) {
	category, kind := in.Category, string(in.SearchType)
	if category == "" {
		category = "(any)"
	}
	if kind == "" {
		kind = "any"
	}
	fmt.Fprintf(w, "Intent: category=%s type=%s radius=%gkm\n", category, kind, in.RadiusKm)
}

// WriteEvents writes upcoming events, soonest first as given.
func WriteEvents(w io.Writer, events []*models.Event, format OutputFormat) error {
	if format == OutputJSON {
		if events == nil {
			events = []*models.Event{}
		}
		return writeJSON(w, map[string]interface{}{"events": events, "count": len(events)})
	}
	fmt.Fprintf(w, "\n%d upcoming events\n\n", len(events))
	for i, ev := range events {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "%d. %s\n", i+1, ev.Title)
		fmt.Fprintf(w, "ID: %s\n", ev.ID)
		if ev.Category != "" {
			fmt.Fprintf(w, "Category: %s\n", ev.Category)
		}
		writeWindow(w, ev)
		if ev.Description != "" {
			fmt.Fprintf(w, "\n%s\n", utils.Truncate(ev.Description, 200))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteLocation writes one location.
func WriteLocation(w io.Writer, l *models.Location, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, l)
	}
	fmt.Fprintf(w, "%s\n", l.Name)
	fmt.Fprintf(w, "ID: %s\n", l.ID)
	fmt.Fprintf(w, "Category: %s\n", l.Category)
	fmt.Fprintf(w, "Coordinate: %s\n", l.Location)
	if l.Address != "" {
		fmt.Fprintf(w, "Address: %s\n", l.Address)
	}
	if l.Phone != "" {
		fmt.Fprintf(w, "Phone: %s\n", l.Phone)
	}
	if l.Rating > 0 {
		fmt.Fprintf(w, "Rating: %.1f\n", l.Rating)
	}
	if l.Description != "" {
		fmt.Fprintf(w, "\n%s\n", l.Description)
	}
	return nil
}

// WriteEvent writes one event.
func WriteEvent(w io.Writer, ev *models.Event, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, ev)
	}
	fmt.Fprintf(w, "%s\n", ev.Title)
	fmt.Fprintf(w, "ID: %s\n", ev.ID)
	fmt.Fprintf(w, "Category: %s\n", ev.Category)
	fmt.Fprintf(w, "Coordinate: %s\n", ev.Location)
	writeWindow(w, ev)
	if ev.Organizer != "" {
		fmt.Fprintf(w, "Organizer: %s\n", ev.Organizer)
	}
	if ev.TicketPrice > 0 {
		fmt.Fprintf(w, "Ticket: %.0f\n", ev.TicketPrice)
	}
	if ev.Description != "" {
		fmt.Fprintf(w, "\n%s\n", ev.Description)
	}
	return nil
}

// WriteReply writes an assistant reply.
func WriteReply(w io.Writer, reply *chat.Reply, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, reply)
	}
	fmt.Fprintln(w, reply.Text)
	if reply.Fallback {
		fmt.Fprintln(w, "(assistant unavailable, showing search results)")
	}
	return nil
}

// WriteFind writes keyword lookup hits.
func WriteFind(w io.Writer, res *keyword.Result, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "\nFound %d matches for %q\n", len(res.Hits), res.Query)
	if res.Suggestion != "" {
		fmt.Fprintf(w, "Did you mean: %s\n", res.Suggestion)
	}
	fmt.Fprintln(w)
	for i, h := range res.Hits {
		fmt.Fprintf(w, "%d. %s/%s (score %.4f)\n", i+1, h.Collection, h.ID, h.Score)
	}
	return nil
}

// WriteStats writes store statistics.
func WriteStats(w io.Writer, stats *storage.Stats, keywordEntries uint64, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{
			"locations":       stats.Locations,
			"events":          stats.Events,
			"disk_bytes":      stats.DiskBytes,
			"keyword_entries": keywordEntries,
		})
	}
	fmt.Fprintf(w, "Locations: %d\n", stats.Locations)
	fmt.Fprintf(w, "Events: %d\n", stats.Events)
	fmt.Fprintf(w, "Keyword entries: %d\n", keywordEntries)
	fmt.Fprintf(w, "Disk usage: %s\n", FormatBytes(stats.DiskBytes))
	return nil
}

// WriteImport writes the counts of a catalog import.
func WriteImport(w io.Writer, stats *catalog.Stats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "Imported %d files: %d locations, %d events", stats.Files, stats.Locations, stats.Events)
	if stats.Skipped > 0 {
		fmt.Fprintf(w, ", %d unchanged", stats.Skipped)
	}
	if stats.Rejected > 0 {
		fmt.Fprintf(w, ", %d rejected", stats.Rejected)
	}
	fmt.Fprintln(w)
	return nil
}

// FormatBytes renders n with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
