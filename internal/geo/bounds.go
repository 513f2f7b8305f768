package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"

	"github.com/hyperjump/quanhday/internal/models"
)

// upperSentinel sorts after every base32 character. It closes ranges that end on the last cell.
const upperSentinel = "~"

// Bounds is an inclusive lexicographic range of geohash strings.
type Bounds struct {
	Lower string `json:"lower"`
	Upper string `json:"upper"`
}

// Contains reports whether hash sorts within b.
func (b Bounds) Contains(hash string) bool {
	return hash >= b.Lower && hash <= b.Upper
}

// QueryBounds returns geohash ranges whose union contains every point within
// radiusMeters of center. Ranges over-select; callers must post-filter by distance.
//
// The disc's latitude and longitude half-spans are bounded exactly on the sphere,
// the grid depth is chosen so one cell is at least a half-span wide in each axis,
// and the cells of a 3x3 sample around center are emitted. Near the poles or for
// very large radii the whole keyspace is returned as a single range.
func QueryBounds(center models.Coordinate, radiusMeters float64) ([]Bounds, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if !(radiusMeters > 0) || math.IsInf(radiusMeters, 1) {
		return nil, fmt.Errorf("%w: radius must be positive, got %v", models.ErrInvalidArgument, radiusMeters)
	}

	angle := radiusMeters / orb.EarthRadius
	latSpan := rad2deg(angle)
	maxLat := math.Min(90, math.Abs(center.Latitude)+latSpan)
	lonSpan := longitudeSpan(angle, maxLat)

	bits := queryBits(latSpan, lonSpan)
	if bits <= 0 {
		return []Bounds{{Lower: base32[:1], Upper: upperSentinel}}, nil
	}

	lats := []float64{
		center.Latitude,
		math.Min(90, center.Latitude+latSpan),
		math.Max(-90, center.Latitude-latSpan),
	}
	lons := []float64{
		center.Longitude,
		wrapLongitude(center.Longitude - lonSpan),
		wrapLongitude(center.Longitude + lonSpan),
	}
	precision := (bits + bitsPerChar - 1) / bitsPerChar

	out := make([]Bounds, 0, len(lats)*len(lons))
	seen := make(map[Bounds]struct{}, len(lats)*len(lons))
	for _, lat := range lats {
		for _, lon := range lons {
			hash := EncodeWithPrecision(models.Coordinate{Latitude: lat, Longitude: lon}, precision)
			b := prefixRange(hash, bits)
			if _, dup := seen[b]; dup {
				continue
			}
			seen[b] = struct{}{}
			out = append(out, b)
		}
	}
	return out, nil
}

// queryBits picks the deepest grid whose cells are at least latSpan tall and
// lonSpan wide. Of n bits, ceil(n/2) go to longitude and floor(n/2) to latitude.
func queryBits(latSpan, lonSpan float64) int {
	latBits := floorLog2(180 / latSpan)
	lonBits := floorLog2(360 / lonSpan)
	return min(2*lonBits, 2*latBits+1, maxBits)
}

// prefixRange returns the range of every geohash sharing the first bits of hash.
func prefixRange(hash string, bits int) Bounds {
	precision := (bits + bitsPerChar - 1) / bitsPerChar
	base := hash[:precision-1]
	last := strings.IndexByte(base32, hash[precision-1])
	unused := precision*bitsPerChar - bits
	start := (last >> unused) << unused
	end := start + 1<<unused
	lower := base + string(base32[start])
	if end >= len(base32) {
		return Bounds{Lower: lower, Upper: base + upperSentinel}
	}
	return Bounds{Lower: lower, Upper: base + string(base32[end])}
}

// longitudeSpan bounds the longitude offset of any point within angle (radians)
// of a center whose disc stays below maxLat degrees of absolute latitude.
func longitudeSpan(angle, maxLat float64) float64 {
	cosLat := math.Cos(deg2rad(maxLat))
	if cosLat <= 0 {
		return 360
	}
	s := math.Sin(angle/2) / cosLat
	if s >= 1 {
		return 360
	}
	return rad2deg(2 * math.Asin(s))
}

func floorLog2(x float64) int {
	return int(math.Floor(math.Log2(x)))
}

func wrapLongitude(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }
