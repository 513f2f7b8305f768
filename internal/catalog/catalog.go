// Package catalog reads location and event catalog files and writes them to the document store.
package catalog

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/quanhday/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// File is the content of one catalog file.
type File struct {
	Locations []LocationRecord `yaml:"locations" json:"locations"`
	Events    []EventRecord    `yaml:"events" json:"events"`
}

// LocationRecord is a location as written in a catalog file.
// ID is optional; records with an ID are upserted so re-importing does not duplicate them.
type LocationRecord struct {
	ID           string             `yaml:"id" json:"id"`
	Name         string             `yaml:"name" json:"name"`
	Category     string             `yaml:"category" json:"category"`
	Location     *models.Coordinate `yaml:"location" json:"location"`
	Description  string             `yaml:"description" json:"description"`
	Address      string             `yaml:"address" json:"address"`
	Phone        string             `yaml:"phone" json:"phone"`
	Website      string             `yaml:"website" json:"website"`
	ImageURL     string             `yaml:"imageUrl" json:"imageUrl"`
	Amenities    []string           `yaml:"amenities" json:"amenities"`
	OpeningHours map[string]string  `yaml:"openingHours" json:"openingHours"`
	Rating       float64            `yaml:"rating" json:"rating"`
	PriceRange   string             `yaml:"priceRange" json:"priceRange"`
}

// EventRecord is an event as written in a catalog file. Times are RFC 3339.
type EventRecord struct {
	ID          string             `yaml:"id" json:"id"`
	Title       string             `yaml:"title" json:"title"`
	Category    string             `yaml:"category" json:"category"`
	Location    *models.Coordinate `yaml:"location" json:"location"`
	Description string             `yaml:"description" json:"description"`
	TicketPrice float64            `yaml:"ticketPrice" json:"ticketPrice"`
	Organizer   string             `yaml:"organizer" json:"organizer"`
	ImageURL    string             `yaml:"imageUrl" json:"imageUrl"`
	StartAt     string             `yaml:"startAt" json:"startAt"`
	EndAt       string             `yaml:"endAt" json:"endAt"`
}

// Parse decodes a catalog file. Files ending in .json are read as JSON, .xlsx as a
// spreadsheet with locations and events sheets, anything else as YAML.
func Parse(path string, data []byte) (*File, error) {
	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return parseXLSX(path, data)
	case ".json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", models.ErrInvalidArgument, path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", models.ErrInvalidArgument, path, err)
		}
	}
	return &f, nil
}

// toModel validates r and returns the entity it describes. Geohash and CreatedAt are left empty.
func (r *LocationRecord) toModel() (*models.Location, error) {
	if strings.TrimSpace(r.Name) == "" {
		return nil, fmt.Errorf("%w: location %q has no name", models.ErrInvalidArgument, r.ID)
	}
	coord, err := requireCoordinate(r.Location, "location", r.Name)
	if err != nil {
		return nil, err
	}
	return &models.Location{
		GeoEntity: models.GeoEntity{
			ID:       r.ID,
			Location: coord,
			Category: r.Category,
		},
		Name:         r.Name,
		Description:  r.Description,
		Address:      r.Address,
		Phone:        r.Phone,
		Website:      r.Website,
		ImageURL:     r.ImageURL,
		Amenities:    r.Amenities,
		OpeningHours: r.OpeningHours,
		Rating:       r.Rating,
		PriceRange:   r.PriceRange,
	}, nil
}

func (r *EventRecord) toModel() (*models.Event, error) {
	if strings.TrimSpace(r.Title) == "" {
		return nil, fmt.Errorf("%w: event %q has no title", models.ErrInvalidArgument, r.ID)
	}
	coord, err := requireCoordinate(r.Location, "event", r.Title)
	if err != nil {
		return nil, err
	}
	start, err := time.Parse(time.RFC3339, r.StartAt)
	if err != nil {
		return nil, fmt.Errorf("%w: event %q startAt: %v", models.ErrInvalidArgument, r.Title, err)
	}
	e := &models.Event{
		GeoEntity: models.GeoEntity{
			ID:       r.ID,
			Location: coord,
			Category: r.Category,
		},
		Title:       r.Title,
		Description: r.Description,
		TicketPrice: r.TicketPrice,
		Organizer:   r.Organizer,
		ImageURL:    r.ImageURL,
		StartAt:     start,
	}
	if r.EndAt != "" {
		end, err := time.Parse(time.RFC3339, r.EndAt)
		if err != nil {
			return nil, fmt.Errorf("%w: event %q endAt: %v", models.ErrInvalidArgument, r.Title, err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("%w: event %q ends before it starts", models.ErrInvalidArgument, r.Title)
		}
		e.EndAt = &end
	}
	return e, nil
}

func requireCoordinate(c *models.Coordinate, kind, name string) (models.Coordinate, error) {
	if c == nil {
		return models.Coordinate{}, fmt.Errorf("%w: %s %q has no coordinate", models.ErrInvalidArgument, kind, name)
	}
	if err := c.Validate(); err != nil {
		return models.Coordinate{}, fmt.Errorf("%s %q: %w", kind, name, err)
	}
	return *c, nil
}
