package catalog

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/quanhday/internal/models"
)

// Spreadsheet catalogs keep one entity kind per sheet, named "locations" or "events".
// The first row of a sheet is a header naming the columns; unknown columns are ignored.
const (
	sheetLocations = "locations"
	sheetEvents    = "events"
)

// row reads cells by header name.
type row struct {
	cols  map[string]int
	cells []string
}

func (r row) get(name string) string {
	i, ok := r.cols[strings.ToLower(name)]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

func (r row) float(name string) (float64, error) {
	v := r.get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
}

// coordinate returns nil when either column is empty or not a number; the record is then rejected on import.
func (r row) coordinate() *models.Coordinate {
	lat, err1 := strconv.ParseFloat(r.get("latitude"), 64)
	lng, err2 := strconv.ParseFloat(r.get("longitude"), 64)
	if err1 != nil || err2 != nil {
		return nil
	}
	return &models.Coordinate{Latitude: lat, Longitude: lng}
}

func (r row) list(name string) []string {
	var out []string
	for _, v := range strings.Split(r.get(name), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (r row) empty() bool {
	for _, c := range r.cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseXLSX(path string, data []byte) (*File, error) {
	x, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", models.ErrInvalidArgument, path, err)
	}
	defer x.Close()

	var f File
	for _, sheet := range x.GetSheetList() {
		kind := strings.ToLower(strings.TrimSpace(sheet))
		if kind != sheetLocations && kind != sheetEvents {
			continue
		}
		rows, err := x.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: read sheet %q of %s: %v", models.ErrInvalidArgument, sheet, path, err)
		}
		if len(rows) == 0 {
			continue
		}
		cols := make(map[string]int, len(rows[0]))
		for i, h := range rows[0] {
			cols[strings.ToLower(strings.TrimSpace(h))] = i
		}
		for n, cells := range rows[1:] {
			r := row{cols: cols, cells: cells}
			if r.empty() {
				continue
			}
			// n+2: one for the header, one for 1-based rows
			if kind == sheetLocations {
				rec, err := locationRow(r)
				if err != nil {
					return nil, fmt.Errorf("%w: %s sheet %q row %d: %v", models.ErrInvalidArgument, path, sheet, n+2, err)
				}
				f.Locations = append(f.Locations, rec)
			} else {
				rec, err := eventRow(r)
				if err != nil {
					return nil, fmt.Errorf("%w: %s sheet %q row %d: %v", models.ErrInvalidArgument, path, sheet, n+2, err)
				}
				f.Events = append(f.Events, rec)
			}
		}
	}
	return &f, nil
}

func locationRow(r row) (LocationRecord, error) {
	rating, err := r.float("rating")
	if err != nil {
		return LocationRecord{}, fmt.Errorf("rating: %w", err)
	}
	return LocationRecord{
		ID:          r.get("id"),
		Name:        r.get("name"),
		Category:    r.get("category"),
		Location:    r.coordinate(),
		Description: r.get("description"),
		Address:     r.get("address"),
		Phone:       r.get("phone"),
		Website:     r.get("website"),
		ImageURL:    r.get("imageUrl"),
		Amenities:   r.list("amenities"),
		Rating:      rating,
		PriceRange:  r.get("priceRange"),
	}, nil
}

func eventRow(r row) (EventRecord, error) {
	price, err := r.float("ticketPrice")
	if err != nil {
		return EventRecord{}, fmt.Errorf("ticketPrice: %w", err)
	}
	return EventRecord{
		ID:          r.get("id"),
		Title:       r.get("title"),
		Category:    r.get("category"),
		Location:    r.coordinate(),
		Description: r.get("description"),
		TicketPrice: price,
		Organizer:   r.get("organizer"),
		ImageURL:    r.get("imageUrl"),
		StartAt:     r.get("startAt"),
		EndAt:       r.get("endAt"),
	}, nil
}
