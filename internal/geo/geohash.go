// Package geo implements the geohash codec used to stamp and query geo entities,
// plus great-circle distance.
package geo

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"github.com/hyperjump/quanhday/internal/models"
)

const (
	// Precision is the geohash length written to stored entities. Query bounds
	// never use more bits than Precision*5, so both sides share one grid.
	Precision   = 10
	bitsPerChar = 5
	maxBits     = Precision * bitsPerChar
	base32      = "0123456789bcdefghjkmnpqrstuvwxyz"
)

// Encode returns the geohash of c at Precision characters.
func Encode(c models.Coordinate) string {
	return EncodeWithPrecision(c, Precision)
}

// EncodeWithPrecision returns the geohash of c with the given number of characters.
// Bits alternate longitude then latitude, most significant first.
func EncodeWithPrecision(c models.Coordinate, precision int) string {
	if precision <= 0 {
		precision = Precision
	}
	latMin, latMax := -90.0, 90.0
	lonMin, lonMax := -180.0, 180.0

	var sb strings.Builder
	sb.Grow(precision)
	bit, ch := 0, 0
	evenBit := true
	for sb.Len() < precision {
		if evenBit {
			mid := (lonMin + lonMax) / 2
			if c.Longitude >= mid {
				ch = ch<<1 | 1
				lonMin = mid
			} else {
				ch <<= 1
				lonMax = mid
			}
		} else {
			mid := (latMin + latMax) / 2
			if c.Latitude >= mid {
				ch = ch<<1 | 1
				latMin = mid
			} else {
				ch <<= 1
				latMax = mid
			}
		}
		evenBit = !evenBit
		bit++
		if bit == bitsPerChar {
			sb.WriteByte(base32[ch])
			bit, ch = 0, 0
		}
	}
	return sb.String()
}

// Decode returns the cell covered by hash as an orb.Bound (Min is south-west).
func Decode(hash string) (orb.Bound, error) {
	if hash == "" {
		return orb.Bound{}, fmt.Errorf("%w: empty geohash", models.ErrInvalidArgument)
	}
	latMin, latMax := -90.0, 90.0
	lonMin, lonMax := -180.0, 180.0
	evenBit := true
	for i := 0; i < len(hash); i++ {
		v := strings.IndexByte(base32, hash[i])
		if v < 0 {
			return orb.Bound{}, fmt.Errorf("%w: invalid geohash character %q in %q", models.ErrInvalidArgument, hash[i], hash)
		}
		for mask := 1 << (bitsPerChar - 1); mask > 0; mask >>= 1 {
			if evenBit {
				mid := (lonMin + lonMax) / 2
				if v&mask != 0 {
					lonMin = mid
				} else {
					lonMax = mid
				}
			} else {
				mid := (latMin + latMax) / 2
				if v&mask != 0 {
					latMin = mid
				} else {
					latMax = mid
				}
			}
			evenBit = !evenBit
		}
	}
	return orb.Bound{Min: orb.Point{lonMin, latMin}, Max: orb.Point{lonMax, latMax}}, nil
}

// Point converts c to an orb.Point ([lon, lat]).
func Point(c models.Coordinate) orb.Point {
	return orb.Point{c.Longitude, c.Latitude}
}

// Coordinate converts an orb.Point back to a Coordinate.
func Coordinate(p orb.Point) models.Coordinate {
	return models.Coordinate{Latitude: p.Lat(), Longitude: p.Lon()}
}
