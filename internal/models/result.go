package models

// SearchResult is one entity found by a nearby search. Exactly one of Location or Event is set.
type SearchResult struct {
	Type           SearchType `json:"type"`
	Location       *Location  `json:"location,omitempty"`
	Event          *Event     `json:"event,omitempty"`
	DistanceMeters float64    `json:"distanceMeters"`
}

// Entity returns the shared geo fields of the result.
func (r *SearchResult) Entity() *GeoEntity {
	if r.Event != nil {
		return &r.Event.GeoEntity
	}
	if r.Location != nil {
		return &r.Location.GeoEntity
	}
	return &GeoEntity{}
}

// Name is the location name or the event title.
func (r *SearchResult) Name() string {
	if r.Event != nil {
		return r.Event.Title
	}
	if r.Location != nil {
		return r.Location.Name
	}
	return ""
}

// Address is empty for events and for locations without one.
func (r *SearchResult) Address() string {
	if r.Location != nil {
		return r.Location.Address
	}
	return ""
}

// DistanceKm returns DistanceMeters in kilometres.
func (r *SearchResult) DistanceKm() float64 {
	return r.DistanceMeters / 1000
}

// SearchOutcome is what the orchestrator hands to the chat layer and the API.
// Message carries the formatted summary on success and the user-facing reason on failure.
type SearchOutcome struct {
	Success bool            `json:"success"`
	Results []*SearchResult `json:"results"`
	Message string          `json:"message,omitempty"`
	Intent  *ParsedIntent   `json:"intent,omitempty"`
	Err     error           `json:"-"`
}
