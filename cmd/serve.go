package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kgm-ocak/ocak-map/internal/api"
	"github.com/kgm-ocak/ocak-map/internal/auth"
	"github.com/kgm-ocak/ocak-map/internal/monitoring"
	"github.com/kgm-ocak/ocak-map/internal/quarry"
	"github.com/kgm-ocak/ocak-map/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if _, err := store.Seed(ctx, st); err != nil {
			return eris.Wrap(err, "seed provinces")
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics := monitoring.NewMetrics(reg)

		server := api.New(api.Deps{
			Quarries: quarry.NewService(st,
				quarry.WithProvinceTTL(cfg.Cache.ProvinceTTL()),
				quarry.WithMetrics(metrics),
			),
			Auth:       auth.NewService(st, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL()),
			Directions: initDirections(),
			Health:     st,
			Metrics:    metrics,
			Gatherer:   reg,
		}, api.Config{
			MaxUploadBytes: cfg.Import.MaxUploadBytes,
			CORSOrigins:    cfg.Server.CORSOrigins,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		checker := monitoring.NewChecker(
			monitoring.NewCollector(st),
			metrics,
			time.Duration(cfg.Monitoring.SnapshotIntervalSecs)*time.Second,
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			checker.Run(gctx)
			return nil
		})
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
