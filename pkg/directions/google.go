package directions

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"

	"github.com/kgm-ocak/ocak-map/internal/geo"
	"github.com/kgm-ocak/ocak-map/internal/resilience"
)

// maxBodyBytes bounds how much of a provider response is read.
const maxBodyBytes = 4 << 20

type googleResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Routes       []googleRoute `json:"routes"`
}

type googleRoute struct {
	Summary          string `json:"summary"`
	OverviewPolyline struct {
		Points string `json:"points"`
	} `json:"overview_polyline"`
	Legs []googleLeg `json:"legs"`
}

type googleLeg struct {
	Distance     textValue `json:"distance"`
	Duration     textValue `json:"duration"`
	StartAddress string    `json:"start_address"`
	EndAddress   string    `json:"end_address"`
}

type textValue struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}

// fetch performs one Directions request. Retryable failures are marked
// transient.
func (c *client) fetch(ctx context.Context, origin, dest geo.Coordinate) (*Route, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "directions: rate limit")
	}

	params := url.Values{
		"origin":      {origin.String()},
		"destination": {dest.String()},
		"mode":        {"driving"},
		"key":         {c.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "directions: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.Transient(eris.Wrap(err, "directions: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("directions: provider returned status %d", resp.StatusCode)
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.Transient(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resilience.Transient(eris.Wrap(err, "directions: read body"), 0)
	}

	var gr googleResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, eris.Wrap(err, "directions: parse response")
	}

	switch gr.Status {
	case "OK":
		if len(gr.Routes) == 0 || len(gr.Routes[0].Legs) == 0 {
			return nil, eris.Wrap(ErrNoRoute, "directions: empty route list")
		}
	case "ZERO_RESULTS", "NOT_FOUND":
		return nil, eris.Wrapf(ErrNoRoute, "directions: %s", gr.Status)
	case "UNKNOWN_ERROR":
		return nil, resilience.Transient(eris.Errorf("directions: provider status %s", gr.Status), 0)
	default:
		return nil, eris.Errorf("directions: provider status %s: %s", gr.Status, gr.ErrorMessage)
	}

	r := gr.Routes[0]
	leg := r.Legs[0]
	return &Route{
		Origin:          origin,
		Destination:     dest,
		Polyline:        r.OverviewPolyline.Points,
		Distance:        leg.Distance.Text,
		Duration:        leg.Duration.Text,
		DistanceMeters:  leg.Distance.Value,
		DurationSeconds: leg.Duration.Value,
		Summary:         r.Summary,
		StartAddress:    leg.StartAddress,
		EndAddress:      leg.EndAddress,
	}, nil
}
