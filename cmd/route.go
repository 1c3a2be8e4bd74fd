package main

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kgm-ocak/ocak-map/internal/geo"
)

var (
	routeFrom string
	routeTo   string
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Print the driving route between two points",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("route"); err != nil {
			return err
		}
		from, err := parseLatLng(routeFrom)
		if err != nil {
			return eris.Wrap(err, "--from")
		}
		to, err := parseLatLng(routeTo)
		if err != nil {
			return eris.Wrap(err, "--to")
		}

		route, err := initDirections().Route(cmd.Context(), from, to)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(route)
	},
}

// parseLatLng reads "lat,lng".
func parseLatLng(s string) (geo.Coordinate, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return geo.Coordinate{}, eris.Wrapf(geo.ErrMalformedCoordinates, "expected lat,lng, got %q", s)
	}
	return geo.ParseCoordinate(strings.TrimSpace(lat), strings.TrimSpace(lng))
}

func init() {
	routeCmd.Flags().StringVar(&routeFrom, "from", "", "origin as lat,lng (required)")
	routeCmd.Flags().StringVar(&routeTo, "to", "", "destination as lat,lng (required)")
	_ = routeCmd.MarkFlagRequired("from")
	_ = routeCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(routeCmd)
}
