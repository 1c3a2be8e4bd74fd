package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kgm-ocak/ocak-map/internal/quarry"
)

var importCmd = &cobra.Command{
	Use:   "import <file.kml|file.kmz>",
	Short: "Import quarry placemarks from a KML or KMZ file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		info, err := os.Stat(path)
		if err != nil {
			return eris.Wrap(err, "import: stat file")
		}
		if limit := cfg.Import.MaxUploadBytes; limit > 0 && info.Size() > limit {
			return eris.Errorf("import: %s is %d bytes, limit is %d", path, info.Size(), limit)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrap(err, "import: read file")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := quarry.NewService(st).Import(ctx, filepath.Base(path), data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d placemarks, %d skipped, %d created\n", //nolint:errcheck
			res.Source, res.Parsed, res.Skipped, res.Created)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
