package geo

import (
	orbgeo "github.com/paulmach/orb/geo"

	"github.com/hyperjump/quanhday/internal/models"
)

// DistanceMeters returns the haversine distance between a and b on a sphere of radius orb.EarthRadius.
func DistanceMeters(a, b models.Coordinate) float64 {
	return orbgeo.DistanceHaversine(Point(a), Point(b))
}
