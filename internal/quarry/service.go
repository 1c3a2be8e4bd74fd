// Package quarry implements the quarry use cases on top of the store:
// search, distance ranking, validated bulk writes, KML/KMZ import and
// exports.
package quarry

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kgm-ocak/ocak-map/internal/geo"
	"github.com/kgm-ocak/ocak-map/internal/model"
	"github.com/kgm-ocak/ocak-map/internal/monitoring"
	"github.com/kgm-ocak/ocak-map/internal/store"
)

var (
	// ErrInvalidRecord is returned when a record fails validation. The
	// wrapped message names the offending record.
	ErrInvalidRecord = eris.New("invalid record")

	// ErrProvinceNotFound is returned when no province has the given name.
	ErrProvinceNotFound = eris.New("province not found")

	// ErrNoPlacemarks is returned when an import file holds no usable placemark.
	ErrNoPlacemarks = eris.New("no data found")
)

// DefaultProvinceTTL is how long province lookups are cached.
const DefaultProvinceTTL = time.Hour

const allProvincesKey = "\x00all"

// Service coordinates quarry reads and writes.
type Service struct {
	store     store.Store
	provinces *cache.Cache
	metrics   *monitoring.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithProvinceTTL overrides how long province lookups are cached.
func WithProvinceTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.provinces = cache.New(ttl, 2*ttl)
		}
	}
}

// WithMetrics records import outcomes on m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service over st.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:     st,
		provinces: cache.New(DefaultProvinceTTL, 2*DefaultProvinceTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every quarry in insertion order.
func (s *Service) List(ctx context.Context) ([]model.Quarry, error) {
	return s.store.ListQuarries(ctx)
}

// Get returns one quarry or store.ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*model.Quarry, error) {
	return s.store.GetQuarry(ctx, id)
}

// Search matches query as a case-insensitive substring of name, province
// or district. A blank query matches nothing and never reaches the store.
func (s *Service) Search(ctx context.Context, query string) ([]model.Quarry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.Quarry{}, nil
	}
	return s.store.SearchQuarries(ctx, query)
}

// Provinces returns every province ordered by name.
func (s *Service) Provinces(ctx context.Context) ([]model.Province, error) {
	if v, ok := s.provinces.Get(allProvincesKey); ok {
		return v.([]model.Province), nil
	}
	provinces, err := s.store.ListProvinces(ctx)
	if err != nil {
		return nil, err
	}
	s.provinces.SetDefault(allProvincesKey, provinces)
	return provinces, nil
}

// Province resolves a province by exact name.
func (s *Service) Province(ctx context.Context, name string) (*model.Province, error) {
	if v, ok := s.provinces.Get(name); ok {
		p := v.(model.Province)
		return &p, nil
	}
	p, err := s.store.GetProvinceByName(ctx, name)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(ErrProvinceNotFound, "quarry: province %q", name)
		}
		return nil, eris.Wrapf(err, "quarry: lookup province %q", name)
	}
	s.provinces.SetDefault(name, *p)
	return p, nil
}

// DistancesByProvince ranks every quarry by great-circle distance from the
// centroid of the named province, nearest first. Ties keep insertion order.
// Quarries whose stored coordinates do not parse are left out.
func (s *Service) DistancesByProvince(ctx context.Context, provinceName string) ([]model.RankedQuarry, error) {
	var (
		province *model.Province
		quarries []model.Quarry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		province, err = s.Province(gctx, provinceName)
		return err
	})
	g.Go(func() error {
		var err error
		quarries, err = s.store.ListQuarries(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	anchor, err := province.Coordinate()
	if err != nil {
		return nil, eris.Wrapf(err, "quarry: province %q centroid", province.Name)
	}
	return Rank(anchor, quarries), nil
}

// Rank annotates quarries with their distance from anchor and sorts them
// ascending with a stable sort.
func Rank(anchor geo.Coordinate, quarries []model.Quarry) []model.RankedQuarry {
	ranked := make([]model.RankedQuarry, 0, len(quarries))
	for _, q := range quarries {
		c, err := q.Coordinate()
		if err != nil {
			zap.L().Warn("quarry: skipping record with unreadable coordinates",
				zap.String("component", "quarry.rank"),
				zap.Int64("id", q.ID),
				zap.Error(err),
			)
			continue
		}
		ranked = append(ranked, model.RankedQuarry{Quarry: q, DistanceKm: anchor.DistanceKm(c)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})
	return ranked
}
