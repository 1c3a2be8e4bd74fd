package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/kgm-ocak/ocak-map/internal/resilience"
	"github.com/kgm-ocak/ocak-map/internal/store"
	"github.com/kgm-ocak/ocak-map/pkg/directions"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore validates the store settings, connects and applies migrations.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initDirections() directions.Client {
	d := cfg.Directions
	policy := resilience.DefaultPolicy()
	if d.RetryAttempts > 0 {
		policy.Attempts = d.RetryAttempts
	}
	return directions.NewClient(
		directions.WithAPIKey(d.APIKey),
		directions.WithBaseURL(d.BaseURL),
		directions.WithTimeout(time.Duration(d.TimeoutSecs)*time.Second),
		directions.WithRateLimit(d.RPS),
		directions.WithRetryPolicy(policy),
		directions.WithBreaker(resilience.BreakerConfig{
			Threshold: d.CircuitThreshold,
			Cooldown:  time.Duration(d.CircuitResetSecs) * time.Second,
		}),
	)
}
