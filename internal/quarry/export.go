package quarry

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/kgm-ocak/ocak-map/internal/geo"
	"github.com/kgm-ocak/ocak-map/internal/model"
)

// exportHeader is the first row of the XLSX export.
var exportHeader = []string{
	"ID", "Name", "Latitude", "Longitude", "Province", "District",
	"Description", "Image URL", "Created At", "Updated At",
}

// GeoJSON encodes every quarry with readable coordinates as a GeoJSON
// FeatureCollection of points.
func (s *Service) GeoJSON(ctx context.Context) ([]byte, error) {
	quarries, err := s.store.ListQuarries(ctx)
	if err != nil {
		return nil, err
	}

	features := make([]geo.Feature, 0, len(quarries))
	for _, q := range quarries {
		c, err := q.Coordinate()
		if err != nil {
			zap.L().Warn("quarry: geojson skipping record",
				zap.String("component", "quarry.export"),
				zap.Int64("id", q.ID),
				zap.Error(err),
			)
			continue
		}
		features = append(features, geo.Feature{
			ID:         strconv.FormatInt(q.ID, 10),
			Point:      c,
			Properties: featureProperties(q),
		})
	}
	return geo.FeatureCollection(features)
}

func featureProperties(q model.Quarry) map[string]any {
	props := map[string]any{"name": q.Name}
	for key, v := range map[string]*string{
		"province":    q.Province,
		"district":    q.District,
		"description": q.Description,
		"imageUrl":    q.ImageURL,
	} {
		if v != nil {
			props[key] = *v
		}
	}
	return props
}

// WriteXLSX writes every quarry as one spreadsheet row to w.
func (s *Service) WriteXLSX(ctx context.Context, w io.Writer) error {
	quarries, err := s.store.ListQuarries(ctx)
	if err != nil {
		return err
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Quarries")
	if err != nil {
		return eris.Wrap(err, "quarry: xlsx add sheet")
	}
	addRow(sheet, exportHeader)
	for _, q := range quarries {
		addRow(sheet, []string{
			strconv.FormatInt(q.ID, 10),
			q.Name,
			q.Latitude,
			q.Longitude,
			deref(q.Province),
			deref(q.District),
			deref(q.Description),
			deref(q.ImageURL),
			q.CreatedAt.UTC().Format(time.RFC3339),
			q.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "quarry: xlsx write")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
