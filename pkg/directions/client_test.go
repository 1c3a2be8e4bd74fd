package directions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kgm-ocak/ocak-map/internal/geo"
	"github.com/kgm-ocak/ocak-map/internal/resilience"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var (
	ankara   = geo.Coordinate{Lat: 39.9334, Lng: 32.8597}
	istanbul = geo.Coordinate{Lat: 41.0082, Lng: 28.9784}
)

const okBody = `{
  "status": "OK",
  "routes": [{
    "summary": "O-4",
    "overview_polyline": {"points": "a~l~Fjk~uOwHJy@P"},
    "legs": [{
      "distance": {"text": "451 km", "value": 451234},
      "duration": {"text": "4 hours 32 mins", "value": 16320},
      "start_address": "Ankara, Türkiye",
      "end_address": "İstanbul, Türkiye"
    }]
  }]
}`

// newTestLimiter creates a rate limiter that effectively does not limit for tests.
func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// newRewriteClient creates an HTTP client that sends requests for targetPrefix
// to the test server instead.
func newRewriteClient(testServerURL, targetPrefix string) *http.Client {
	return &http.Client{Transport: &rewriteTransport{
		base:         http.DefaultTransport,
		testServer:   testServerURL,
		targetPrefix: targetPrefix,
	}}
}

type rewriteTransport struct {
	base         http.RoundTripper
	testServer   string
	targetPrefix string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	orig := req.URL.String()
	if !strings.HasPrefix(orig, t.targetPrefix) {
		return t.base.RoundTrip(req)
	}
	parsed, err := req.URL.Parse(t.testServer + orig[len(t.targetPrefix):])
	if err != nil {
		return nil, err
	}
	newReq := req.Clone(req.Context())
	newReq.URL = parsed
	newReq.Host = parsed.Host
	return t.base.RoundTrip(newReq)
}

// testServer replies with the given bodies in order, repeating the last.
func testServer(t *testing.T, replies ...func(w http.ResponseWriter)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := int(hits.Add(1))
		replies[min(n, len(replies))-1](w)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func jsonReply(body string) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body) //nolint:errcheck
	}
}

func statusReply(code int) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) { w.WriteHeader(code) }
}

func newTestClient(baseURL string, opts ...Option) *client {
	all := append([]Option{
		WithAPIKey("test-key"),
		WithBaseURL(baseURL),
		WithRetryPolicy(resilience.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}),
	}, opts...)
	c := NewClient(all...).(*client)
	c.limiter = newTestLimiter()
	return c
}

func TestRoute_Success(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		jsonReply(okBody)(w)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	route, err := c.Route(context.Background(), ankara, istanbul)
	require.NoError(t, err)

	assert.Contains(t, query, "origin=39.9334%2C32.8597")
	assert.Contains(t, query, "destination=41.0082%2C28.9784")
	assert.Contains(t, query, "mode=driving")
	assert.Contains(t, query, "key=test-key")

	assert.Equal(t, ankara, route.Origin)
	assert.Equal(t, istanbul, route.Destination)
	assert.Equal(t, "a~l~Fjk~uOwHJy@P", route.Polyline)
	assert.Equal(t, "451 km", route.Distance)
	assert.Equal(t, "4 hours 32 mins", route.Duration)
	assert.Equal(t, 451234, route.DistanceMeters)
	assert.Equal(t, 16320, route.DurationSeconds)
	assert.Equal(t, "O-4", route.Summary)
	assert.Equal(t, "İstanbul, Türkiye", route.EndAddress)
}

func TestRoute_DefaultEndpoint(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		jsonReply(okBody)(w)
	}))
	defer srv.Close()

	c := NewClient(
		WithAPIKey("k"),
		WithHTTPClient(newRewriteClient(srv.URL, "https://maps.googleapis.com")),
	)
	_, err := c.Route(context.Background(), ankara, istanbul)
	require.NoError(t, err)
	assert.Equal(t, "/maps/api/directions/json", path)
}

func TestRoute_InvalidCoordinatesSkipRequest(t *testing.T) {
	srv, hits := testServer(t, jsonReply(okBody))
	c := newTestClient(srv.URL)

	tests := []struct {
		name         string
		origin, dest geo.Coordinate
	}{
		{"latitude out of range", geo.Coordinate{Lat: 91, Lng: 0}, istanbul},
		{"longitude out of range", ankara, geo.Coordinate{Lat: 0, Lng: 181}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Route(context.Background(), tt.origin, tt.dest)
			assert.True(t, errors.Is(err, ErrInvalidCoordinates))
		})
	}
	assert.Zero(t, hits.Load())
}

func TestRoute_MissingAPIKey(t *testing.T) {
	srv, hits := testServer(t, jsonReply(okBody))
	c := NewClient(WithBaseURL(srv.URL))

	_, err := c.Route(context.Background(), ankara, istanbul)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
	assert.Zero(t, hits.Load())
}

func TestRoute_NoRoute(t *testing.T) {
	bodies := map[string]string{
		"zero results":   `{"status":"ZERO_RESULTS","routes":[]}`,
		"not found":      `{"status":"NOT_FOUND","routes":[]}`,
		"ok but empty":   `{"status":"OK","routes":[]}`,
		"ok but no legs": `{"status":"OK","routes":[{"legs":[]}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv, hits := testServer(t, jsonReply(body))
			c := newTestClient(srv.URL)

			route, err := c.Route(context.Background(), ankara, istanbul)
			assert.Nil(t, route)
			assert.True(t, errors.Is(err, ErrNoRoute))
			assert.False(t, errors.Is(err, ErrProviderUnavailable))
			assert.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestRoute_ProviderRejections(t *testing.T) {
	bodies := map[string]string{
		"over query limit": `{"status":"OVER_QUERY_LIMIT","error_message":"quota"}`,
		"request denied":   `{"status":"REQUEST_DENIED","error_message":"bad key"}`,
		"malformed body":   `{"status":`,
		"not json":         `<html>oops</html>`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv, hits := testServer(t, jsonReply(body))
			c := newTestClient(srv.URL)

			_, err := c.Route(context.Background(), ankara, istanbul)
			assert.True(t, errors.Is(err, ErrProviderUnavailable))
			assert.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestRoute_RetriesTransientFailures(t *testing.T) {
	srv, hits := testServer(t,
		statusReply(http.StatusServiceUnavailable),
		jsonReply(`{"status":"UNKNOWN_ERROR"}`),
		jsonReply(okBody),
	)
	c := newTestClient(srv.URL)

	route, err := c.Route(context.Background(), ankara, istanbul)
	require.NoError(t, err)
	assert.Equal(t, "451 km", route.Distance)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRoute_GivesUpAfterRetries(t *testing.T) {
	srv, hits := testServer(t, statusReply(http.StatusInternalServerError))
	c := newTestClient(srv.URL)

	_, err := c.Route(context.Background(), ankara, istanbul)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
	assert.Equal(t, int32(3), hits.Load())
}

func TestRoute_NonRetryableStatus(t *testing.T) {
	srv, hits := testServer(t, statusReply(http.StatusForbidden))
	c := newTestClient(srv.URL)

	_, err := c.Route(context.Background(), ankara, istanbul)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
	assert.Equal(t, int32(1), hits.Load())
}

func TestRoute_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
			jsonReply(okBody)(w)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, WithTimeout(50*time.Millisecond))
	start := time.Now()
	_, err := c.Route(context.Background(), ankara, istanbul)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
	assert.Less(t, time.Since(start), time.Second)
}

func TestRoute_BreakerOpensAfterOutage(t *testing.T) {
	srv, hits := testServer(t, statusReply(http.StatusBadGateway))
	c := newTestClient(srv.URL,
		WithRetryPolicy(resilience.Policy{Attempts: 1}),
		WithBreaker(resilience.BreakerConfig{Threshold: 2, Cooldown: time.Hour}),
	)
	ctx := context.Background()

	for range 2 {
		_, err := c.Route(ctx, ankara, istanbul)
		assert.True(t, errors.Is(err, ErrProviderUnavailable))
	}
	require.Equal(t, int32(2), hits.Load())

	_, err := c.Route(ctx, ankara, istanbul)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.Equal(t, int32(2), hits.Load())
}

func TestRoute_NoRouteDoesNotTripBreaker(t *testing.T) {
	srv, hits := testServer(t, jsonReply(`{"status":"ZERO_RESULTS"}`))
	c := newTestClient(srv.URL, WithBreaker(resilience.BreakerConfig{Threshold: 1, Cooldown: time.Hour}))

	for range 3 {
		_, err := c.Route(context.Background(), ankara, istanbul)
		assert.True(t, errors.Is(err, ErrNoRoute))
	}
	assert.Equal(t, int32(3), hits.Load())
}
