// Package directions computes driving routes through the Google Directions API.
package directions

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/kgm-ocak/ocak-map/internal/geo"
	"github.com/kgm-ocak/ocak-map/internal/resilience"
)

// DefaultBaseURL is the Google Directions JSON endpoint.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/directions/json"

// DefaultTimeout bounds one Route call, retries included.
const DefaultTimeout = 8 * time.Second

var (
	// ErrInvalidCoordinates is returned before any request when an endpoint
	// is not a valid coordinate.
	ErrInvalidCoordinates = eris.New("invalid coordinates")

	// ErrNoRoute is returned when the provider finds no route between the points.
	ErrNoRoute = eris.New("no route found")

	// ErrProviderUnavailable covers every failure to get an answer from the
	// provider: network errors, timeouts, quota and auth problems, bad bodies.
	ErrProviderUnavailable = eris.New("route provider unavailable")
)

// Route is the first leg of the first route the provider returned.
type Route struct {
	Origin          geo.Coordinate `json:"origin"`
	Destination     geo.Coordinate `json:"destination"`
	Polyline        string         `json:"polyline"`
	Distance        string         `json:"distance"`
	Duration        string         `json:"duration"`
	DistanceMeters  int            `json:"distanceMeters"`
	DurationSeconds int            `json:"durationSeconds"`
	Summary         string         `json:"summary,omitempty"`
	StartAddress    string         `json:"startAddress,omitempty"`
	EndAddress      string         `json:"endAddress,omitempty"`
}

// Client computes routes between two coordinates.
type Client interface {
	Route(ctx context.Context, origin, dest geo.Coordinate) (*Route, error)
}

// Option configures the client.
type Option func(*client)

// WithAPIKey sets the Google Maps API key.
func WithAPIKey(key string) Option {
	return func(c *client) { c.apiKey = key }
}

// WithBaseURL overrides the Directions endpoint.
func WithBaseURL(u string) Option {
	return func(c *client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// WithRateLimit sets the requests-per-second limit toward the provider.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetryPolicy overrides the retry policy for transient failures.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *client) { c.retry = p }
}

// WithBreaker sets the circuit breaker configuration.
func WithBreaker(cfg resilience.BreakerConfig) Option {
	return func(c *client) { c.breakerCfg = cfg }
}

type client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	timeout    time.Duration
	retry      resilience.Policy
	breakerCfg resilience.BreakerConfig
	breaker    *resilience.Breaker
}

// NewClient creates a Directions client.
func NewClient(opts ...Option) Client {
	c := &client{
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
		limiter:    rate.NewLimiter(10, 10),
		timeout:    DefaultTimeout,
		retry:      resilience.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.OnRetry = resilience.LogRetries("directions", "route")
	if c.breakerCfg.Counts == nil {
		c.breakerCfg.Counts = countsAsOutage
	}
	c.breaker = resilience.NewBreaker(c.breakerCfg)
	return c
}

// Route returns the driving route from origin to dest.
func (c *client) Route(ctx context.Context, origin, dest geo.Coordinate) (*Route, error) {
	if !origin.Valid() {
		return nil, eris.Wrapf(ErrInvalidCoordinates, "directions: origin %s", origin)
	}
	if !dest.Valid() {
		return nil, eris.Wrapf(ErrInvalidCoordinates, "directions: destination %s", dest)
	}
	if c.apiKey == "" {
		return nil, eris.Wrap(ErrProviderUnavailable, "directions: api key not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	route, err := resilience.Call(ctx, c.breaker, func(ctx context.Context) (*Route, error) {
		return resilience.Retry(ctx, c.retry, func(ctx context.Context) (*Route, error) {
			return c.fetch(ctx, origin, dest)
		})
	})
	switch {
	case err == nil:
		return route, nil
	case errors.Is(err, ErrNoRoute):
		return nil, err
	default:
		return nil, eris.Wrapf(ErrProviderUnavailable, "directions: %s", err.Error())
	}
}

// countsAsOutage keeps "no route" answers and caller cancellation from
// tripping the breaker.
func countsAsOutage(err error) bool {
	return err != nil && !errors.Is(err, ErrNoRoute) && !errors.Is(err, context.Canceled)
}
