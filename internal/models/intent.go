package models

import "fmt"

// SearchType selects which collections a search covers. The empty value means both.
type SearchType string

const (
	SearchTypeLocation SearchType = "location"
	SearchTypeEvent    SearchType = "event"
	SearchTypeAny      SearchType = ""
)

// DefaultRadiusKm is used when a request carries no radius.
const DefaultRadiusKm = 10.0

// ParsedIntent is the structured form of a free-text search request.
type ParsedIntent struct {
	Category   string     `json:"category,omitempty"`
	RadiusKm   float64    `json:"radius"`
	SearchType SearchType `json:"searchType,omitempty"`
}

// Validate checks the search type and fills in the default radius when unset.
func (p *ParsedIntent) Validate() error {
	if p.RadiusKm == 0 {
		p.RadiusKm = DefaultRadiusKm
	}
	if p.RadiusKm < 0 {
		return fmt.Errorf("%w: radius must be positive, got %v", ErrInvalidArgument, p.RadiusKm)
	}
	switch p.SearchType {
	case SearchTypeLocation, SearchTypeEvent, SearchTypeAny:
		return nil
	default:
		return fmt.Errorf("%w: unknown search type %q", ErrInvalidArgument, p.SearchType)
	}
}

// IncludesLocations reports whether the intent searches the locations collection.
func (p *ParsedIntent) IncludesLocations() bool {
	return p.SearchType == SearchTypeLocation || p.SearchType == SearchTypeAny
}

// IncludesEvents reports whether the intent searches live events.
func (p *ParsedIntent) IncludesEvents() bool {
	return p.SearchType == SearchTypeEvent || p.SearchType == SearchTypeAny
}
