package model

import (
	"time"

	"github.com/kgm-ocak/ocak-map/internal/geo"
)

// Quarry is a point-of-interest record for a quarry site.
//
// Coordinates are kept as fixed-precision decimal text, the way they are
// stored, so a round trip through the store never changes their digits.
type Quarry struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Latitude    string    `json:"latitude"`
	Longitude   string    `json:"longitude"`
	ImageURL    *string   `json:"imageUrl,omitempty"`
	Description *string   `json:"description,omitempty"`
	Province    *string   `json:"province,omitempty"`
	District    *string   `json:"district,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Coordinate parses the stored decimal coordinates.
func (q Quarry) Coordinate() (geo.Coordinate, error) {
	return geo.ParseCoordinate(q.Latitude, q.Longitude)
}

// QuarryInput is the payload for creating a quarry.
type QuarryInput struct {
	Name        string  `json:"name"`
	Latitude    string  `json:"latitude"`
	Longitude   string  `json:"longitude"`
	ImageURL    *string `json:"imageUrl,omitempty"`
	Description *string `json:"description,omitempty"`
	Province    *string `json:"province,omitempty"`
	District    *string `json:"district,omitempty"`
}

// QuarryPatch is a partial update. Nil fields are left untouched.
type QuarryPatch struct {
	Name        *string `json:"name,omitempty"`
	Latitude    *string `json:"latitude,omitempty"`
	Longitude   *string `json:"longitude,omitempty"`
	ImageURL    *string `json:"imageUrl,omitempty"`
	Description *string `json:"description,omitempty"`
	Province    *string `json:"province,omitempty"`
	District    *string `json:"district,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p QuarryPatch) Empty() bool {
	return p.Name == nil && p.Latitude == nil && p.Longitude == nil &&
		p.ImageURL == nil && p.Description == nil && p.Province == nil && p.District == nil
}

// RankedQuarry is a quarry annotated with its distance from an anchor point.
type RankedQuarry struct {
	Quarry
	DistanceKm float64 `json:"distance"`
}

// Province is a static reference record with a centroid.
type Province struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// Coordinate parses the centroid.
func (p Province) Coordinate() (geo.Coordinate, error) {
	return geo.ParseCoordinate(p.Latitude, p.Longitude)
}
