package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kgm-ocak/ocak-map/internal/config"
)

var (
	cfg        *config.Config
	configPath string
	sqlitePath string
)

var rootCmd = &cobra.Command{
	Use:   "ocak-map",
	Short: "Quarry location tracking service",
	Long:  "Stores quarry sites, imports them from KML/KMZ, ranks them by distance from a province and routes between points.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if sqlitePath != "" {
			c.Store.Driver = "sqlite"
			c.Store.SQLitePath = sqlitePath
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		zap.L().Debug("config loaded",
			zap.String("file", configPath),
			zap.String("store_driver", cfg.Store.Driver),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "use the SQLite store at this path instead of the configured driver")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
