package geo

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Feature is a point feature with free-form properties.
type Feature struct {
	ID         string
	Point      Coordinate
	Properties map[string]any
}

// FeatureCollection encodes features as a GeoJSON FeatureCollection.
// GeoJSON positions are [lng, lat].
func FeatureCollection(features []Feature) ([]byte, error) {
	fc := geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(features)),
	}
	for _, f := range features {
		if !f.Point.Valid() {
			return nil, eris.Wrapf(ErrMalformedCoordinates, "geo: feature %s", f.ID)
		}
		pt := geom.NewPointFlat(geom.XY, []float64{f.Point.Lng, f.Point.Lat})
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         f.ID,
			Geometry:   pt,
			Properties: f.Properties,
		})
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode feature collection")
	}
	return data, nil
}
