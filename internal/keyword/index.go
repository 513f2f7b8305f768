// Package keyword provides free-text lookup of locations and events by name, category and description.
package keyword

import (
	"strings"

	"github.com/hyperjump/quanhday/internal/models"
)

// Entry is the indexed text of one location or event.
type Entry struct {
	Collection  string `json:"collection"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Address     string `json:"address"`
	Organizer   string `json:"organizer"`
}

// Hit is a single keyword search hit.
type Hit struct {
	Collection string  `json:"collection"`
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
}

// Result holds the hits of a lookup. Suggestion is a corrected query offered when
// some query terms are not in the index.
type Result struct {
	Query      string `json:"query"`
	Hits       []*Hit `json:"hits"`
	Suggestion string `json:"suggestion,omitempty"`
}

// LocationEntry returns the index entry for l.
func LocationEntry(l *models.Location) *Entry {
	return &Entry{
		Collection:  models.CollectionLocations,
		Name:        l.Name,
		Category:    l.Category,
		Description: l.Description,
		Address:     l.Address,
	}
}

// EventEntry returns the index entry for e.
func EventEntry(e *models.Event) *Entry {
	return &Entry{
		Collection:  models.CollectionEvents,
		Name:        e.Title,
		Category:    e.Category,
		Description: e.Description,
		Organizer:   e.Organizer,
	}
}

func docID(collection, id string) string {
	return collection + "/" + id
}

func splitDocID(docID string) (collection, id string) {
	collection, id, found := strings.Cut(docID, "/")
	if !found {
		return "", docID
	}
	return collection, id
}
