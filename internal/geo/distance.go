// Package geo provides coordinate parsing and great-circle distance helpers.
package geo

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// EarthRadiusKm is the mean Earth radius used by DistanceKm.
const EarthRadiusKm = 6371.0

// decimalPlaces matches the NUMERIC(10,7) scale used for stored coordinates.
const decimalPlaces = 7

// ErrMalformedCoordinates is returned when a latitude/longitude pair is
// missing, non-numeric, non-finite or out of range.
var ErrMalformedCoordinates = eris.New("malformed coordinates")

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both components are finite and within range.
func (c Coordinate) Valid() bool {
	return finite(c.Lat) && finite(c.Lng) &&
		c.Lat >= -90 && c.Lat <= 90 &&
		c.Lng >= -180 && c.Lng <= 180
}

// DistanceKm returns the great-circle distance to other in kilometers.
func (c Coordinate) DistanceKm(other Coordinate) float64 {
	return DistanceKm(c.Lat, c.Lng, other.Lat, other.Lng)
}

// String formats the coordinate as "lat,lng", the form routing APIs expect.
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

// DistanceKm computes the haversine distance between two points given in
// degrees. Non-finite inputs are not supported; callers validate first.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// Rounding can push a marginally past 1 for antipodal points.
	a = math.Min(1, math.Max(0, a))

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// ParseCoordinate parses decimal latitude and longitude strings.
func ParseCoordinate(lat, lng string) (Coordinate, error) {
	latV, err := parseComponent(lat)
	if err != nil {
		return Coordinate{}, eris.Wrapf(ErrMalformedCoordinates, "latitude %q", lat)
	}
	lngV, err := parseComponent(lng)
	if err != nil {
		return Coordinate{}, eris.Wrapf(ErrMalformedCoordinates, "longitude %q", lng)
	}
	c := Coordinate{Lat: latV, Lng: lngV}
	if !c.Valid() {
		return Coordinate{}, eris.Wrapf(ErrMalformedCoordinates, "out of range %s", c)
	}
	return c, nil
}

// FormatDecimal renders v as fixed-precision decimal text for persistence.
func FormatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', decimalPlaces, 64)
}

func parseComponent(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, eris.New("empty")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if !finite(v) {
		return 0, eris.New("not finite")
	}
	return v, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
