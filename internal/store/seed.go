package store

import (
	"context"
	_ "embed"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kgm-ocak/ocak-map/internal/geo"
	"github.com/kgm-ocak/ocak-map/internal/model"
)

//go:embed provinces.yaml
var provincesYAML []byte

type provinceSeed struct {
	Provinces []struct {
		Name      string  `yaml:"name"`
		Latitude  float64 `yaml:"latitude"`
		Longitude float64 `yaml:"longitude"`
	} `yaml:"provinces"`
}

// SeedProvinces parses the embedded province reference data.
func SeedProvinces() ([]model.Province, error) {
	var seed provinceSeed
	if err := yaml.Unmarshal(provincesYAML, &seed); err != nil {
		return nil, eris.Wrap(err, "store: parse provinces seed")
	}

	seen := make(map[string]bool, len(seed.Provinces))
	out := make([]model.Province, 0, len(seed.Provinces))
	for i, p := range seed.Provinces {
		c := geo.Coordinate{Lat: p.Latitude, Lng: p.Longitude}
		if p.Name == "" || !c.Valid() {
			return nil, eris.Errorf("store: provinces seed entry %d (%q) is invalid", i, p.Name)
		}
		if seen[p.Name] {
			return nil, eris.Errorf("store: provinces seed has duplicate %q", p.Name)
		}
		seen[p.Name] = true
		out = append(out, model.Province{
			Name:      p.Name,
			Latitude:  geo.FormatDecimal(p.Latitude),
			Longitude: geo.FormatDecimal(p.Longitude),
		})
	}
	return out, nil
}

// Seed upserts the province reference data by name. Running it twice
// leaves the table unchanged.
func Seed(ctx context.Context, st Store) (int, error) {
	provinces, err := SeedProvinces()
	if err != nil {
		return 0, err
	}
	n, err := st.UpsertProvinces(ctx, provinces)
	if err != nil {
		return 0, eris.Wrap(err, "store: seed provinces")
	}
	zap.L().Info("seeded provinces",
		zap.String("component", "store.seed"),
		zap.Int("provinces", len(provinces)),
		zap.Int("rows_affected", n),
	)
	return len(provinces), nil
}
