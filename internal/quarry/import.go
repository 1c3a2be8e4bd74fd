package quarry

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kgm-ocak/ocak-map/internal/geo"
	"github.com/kgm-ocak/ocak-map/internal/kml"
	"github.com/kgm-ocak/ocak-map/internal/model"
)

// ImportResult summarizes one KML/KMZ import.
type ImportResult struct {
	Source  string `json:"source"`
	Parsed  int    `json:"parsed"`
	Skipped int    `json:"skipped"`
	Created int    `json:"created"`
}

// Import parses a .kml or .kmz upload and stores every usable placemark in
// one batch, names exactly as written in the file. A file without usable
// placemarks fails with ErrNoPlacemarks.
func (s *Service) Import(ctx context.Context, filename string, data []byte) (*ImportResult, error) {
	log := zap.L().With(zap.String("component", "quarry.import"), zap.String("file", filename))

	res, err := kml.ParseFile(filename, data)
	if err != nil {
		return nil, eris.Wrapf(err, "quarry: parse %s", filename)
	}
	if res.Empty() {
		s.metrics.ObserveImport(0, res.Skipped)
		return nil, eris.Wrapf(ErrNoPlacemarks, "quarry: import %s: %d placemarks skipped", filename, res.Skipped)
	}

	created, err := s.createMany(ctx, PlacemarkInputs(res.Placemarks), true)
	if err != nil {
		return nil, eris.Wrapf(err, "quarry: import %s", filename)
	}
	s.metrics.ObserveImport(created, res.Skipped)

	out := &ImportResult{
		Source:  res.Source,
		Parsed:  len(res.Placemarks),
		Skipped: res.Skipped,
		Created: created,
	}
	log.Info("import complete",
		zap.String("source", out.Source),
		zap.Int("parsed", out.Parsed),
		zap.Int("skipped", out.Skipped),
		zap.Int("created", out.Created),
	)
	return out, nil
}

// PlacemarkInputs converts parsed placemarks into create payloads.
func PlacemarkInputs(pms []kml.Placemark) []model.QuarryInput {
	out := make([]model.QuarryInput, len(pms))
	for i, pm := range pms {
		out[i] = model.QuarryInput{
			Name:        pm.Name,
			Latitude:    geo.FormatDecimal(pm.Latitude),
			Longitude:   geo.FormatDecimal(pm.Longitude),
			Description: nonEmpty(pm.Description),
			ImageURL:    nonEmpty(pm.ImageURL),
		}
	}
	return out
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
