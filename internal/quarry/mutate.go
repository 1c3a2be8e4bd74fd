package quarry

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kgm-ocak/ocak-map/internal/geo"
	"github.com/kgm-ocak/ocak-map/internal/model"
)

// Create validates and stores one quarry.
func (s *Service) Create(ctx context.Context, in model.QuarryInput) (*model.Quarry, error) {
	norm, err := normalizeInput(in, false)
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidRecord, "quarry: create: %s", err.Error())
	}
	return s.store.CreateQuarry(ctx, norm)
}

// CreateMany validates every record before writing any of them. The first
// invalid record fails the whole batch and nothing is committed. A valid
// batch is written in one transaction and the committed count returned.
func (s *Service) CreateMany(ctx context.Context, in []model.QuarryInput) (int, error) {
	return s.createMany(ctx, in, false)
}

// createMany is CreateMany with keepNames leaving names untouched, for
// placemark names that are stored as written in the source file.
func (s *Service) createMany(ctx context.Context, in []model.QuarryInput, keepNames bool) (int, error) {
	if len(in) == 0 {
		return 0, nil
	}
	batch := make([]model.QuarryInput, len(in))
	for i := range in {
		norm, err := normalizeInput(in[i], keepNames)
		if err != nil {
			return 0, eris.Wrapf(ErrInvalidRecord, "quarry: record %d: %s", i, err.Error())
		}
		batch[i] = norm
	}

	n, err := s.store.CreateQuarries(ctx, batch)
	if err != nil {
		return 0, eris.Wrapf(err, "quarry: create %d records", len(batch))
	}
	zap.L().Info("quarry: bulk create committed",
		zap.String("component", "quarry.bulk"),
		zap.Int("records", n),
	)
	return n, nil
}

// Update applies a partial patch. An empty patch returns the record unchanged.
func (s *Service) Update(ctx context.Context, id int64, patch model.QuarryPatch) (*model.Quarry, error) {
	norm, err := normalizePatch(patch)
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidRecord, "quarry: update %d: %s", id, err.Error())
	}
	if norm.Empty() {
		return s.store.GetQuarry(ctx, id)
	}
	return s.store.UpdateQuarry(ctx, id, norm)
}

// Delete removes one quarry. Deleting an absent id succeeds.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteQuarry(ctx, id)
}

// DeleteMany removes ids in one statement and reports how many ids were
// requested, not how many rows existed.
func (s *Service) DeleteMany(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.store.DeleteQuarries(ctx, ids); err != nil {
		return 0, eris.Wrapf(err, "quarry: delete %d records", len(ids))
	}
	return len(ids), nil
}

// normalizeInput trims text fields, drops blank optionals and rewrites the
// coordinates with fixed precision. With keepName the name is only checked
// for being blank.
func normalizeInput(in model.QuarryInput, keepName bool) (model.QuarryInput, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.QuarryInput{}, eris.New("name is required")
	}
	if keepName {
		name = in.Name
	}
	c, err := geo.ParseCoordinate(in.Latitude, in.Longitude)
	if err != nil {
		return model.QuarryInput{}, err
	}
	return model.QuarryInput{
		Name:        name,
		Latitude:    geo.FormatDecimal(c.Lat),
		Longitude:   geo.FormatDecimal(c.Lng),
		ImageURL:    optional(in.ImageURL),
		Description: optional(in.Description),
		Province:    optional(in.Province),
		District:    optional(in.District),
	}, nil
}

func normalizePatch(p model.QuarryPatch) (model.QuarryPatch, error) {
	out := p
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return model.QuarryPatch{}, eris.New("name must not be empty")
		}
		out.Name = &name
	}
	if p.Latitude != nil || p.Longitude != nil {
		// A lone component is range-checked against a neutral partner.
		lat, lng := "0", "0"
		if p.Latitude != nil {
			lat = *p.Latitude
		}
		if p.Longitude != nil {
			lng = *p.Longitude
		}
		c, err := geo.ParseCoordinate(lat, lng)
		if err != nil {
			return model.QuarryPatch{}, err
		}
		if p.Latitude != nil {
			v := geo.FormatDecimal(c.Lat)
			out.Latitude = &v
		}
		if p.Longitude != nil {
			v := geo.FormatDecimal(c.Lng)
			out.Longitude = &v
		}
	}
	return out, nil
}

// optional returns nil for absent or blank values.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
