package api

import (
	"errors"
	"net/http"

	"github.com/kgm-ocak/ocak-map/internal/geo"
	"github.com/kgm-ocak/ocak-map/internal/monitoring"
	"github.com/kgm-ocak/ocak-map/pkg/directions"
)

// handleRoute answers GET /api/route?originLat&originLng&destLat&destLng.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	origin, err := geo.ParseCoordinate(q.Get("originLat"), q.Get("originLng"))
	if err != nil {
		s.Metrics.ObserveRoute(monitoring.RouteInvalid)
		writeError(w, r, err)
		return
	}
	dest, err := geo.ParseCoordinate(q.Get("destLat"), q.Get("destLng"))
	if err != nil {
		s.Metrics.ObserveRoute(monitoring.RouteInvalid)
		writeError(w, r, err)
		return
	}

	route, err := s.Directions.Route(r.Context(), origin, dest)
	s.Metrics.ObserveRoute(routeOutcome(err))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

func routeOutcome(err error) string {
	switch {
	case err == nil:
		return monitoring.RouteOK
	case errors.Is(err, directions.ErrNoRoute):
		return monitoring.RouteNoRoute
	case errors.Is(err, directions.ErrInvalidCoordinates):
		return monitoring.RouteInvalid
	default:
		return monitoring.RouteUnavailable
	}
}
