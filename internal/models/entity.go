// Package models defines the geo entities, search intents, results and error kinds.
package models

import "time"

// Collection names in the document store.
const (
	CollectionLocations = "locations"
	CollectionEvents    = "events"
)

// GeoEntity holds the fields shared by events and locations.
// Geohash is written once from Location and is the only field range queries trust.
type GeoEntity struct {
	ID        string     `json:"id"`
	Location  Coordinate `json:"location"`
	Geohash   string     `json:"geohash"`
	Category  string     `json:"category"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Event is a time-bounded happening at a place.
type Event struct {
	GeoEntity
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	TicketPrice float64    `json:"ticketPrice,omitempty"`
	Organizer   string     `json:"organizer,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	StartAt     time.Time  `json:"startAt"`
	EndAt       *time.Time `json:"endAt,omitempty"`
}

// Location is a venue. It has no time window and is always eligible.
type Location struct {
	GeoEntity
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Address      string            `json:"address,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	Website      string            `json:"website,omitempty"`
	ImageURL     string            `json:"imageUrl,omitempty"`
	Amenities    []string          `json:"amenities,omitempty"`
	OpeningHours map[string]string `json:"openingHours,omitempty"`
	Rating       float64           `json:"rating,omitempty"`
	PriceRange   string            `json:"priceRange,omitempty"`
}

func (g GeoEntity) fields() map[string]interface{} {
	return map[string]interface{}{
		"location": map[string]interface{}{
			"latitude":  g.Location.Latitude,
			"longitude": g.Location.Longitude,
		},
		"geohash":   g.Geohash,
		"category":  g.Category,
		"createdAt": g.CreatedAt.UTC().Truncate(time.Second),
	}
}

// Fields returns the stored representation of e. Timestamps keep second granularity.
func (e *Event) Fields() map[string]interface{} {
	m := e.GeoEntity.fields()
	m["title"] = e.Title
	m["description"] = e.Description
	m["ticketPrice"] = e.TicketPrice
	m["organizer"] = e.Organizer
	m["imageUrl"] = e.ImageURL
	m["startAt"] = e.StartAt.UTC().Truncate(time.Second)
	if e.EndAt != nil {
		m["endAt"] = e.EndAt.UTC().Truncate(time.Second)
	} else {
		m["endAt"] = nil
	}
	return m
}

// Fields returns the stored representation of l.
func (l *Location) Fields() map[string]interface{} {
	m := l.GeoEntity.fields()
	m["name"] = l.Name
	m["description"] = l.Description
	m["address"] = l.Address
	m["phone"] = l.Phone
	m["website"] = l.Website
	m["imageUrl"] = l.ImageURL
	m["rating"] = l.Rating
	m["priceRange"] = l.PriceRange
	if len(l.Amenities) > 0 {
		m["amenities"] = l.Amenities
	}
	if len(l.OpeningHours) > 0 {
		m["openingHours"] = l.OpeningHours
	}
	return m
}
