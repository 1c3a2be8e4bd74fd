package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ocak"

// Route outcomes recorded by ObserveRoute.
const (
	RouteOK          = "ok"
	RouteNoRoute     = "no_route"
	RouteInvalid     = "invalid"
	RouteUnavailable = "unavailable"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	routes       *prometheus.CounterVec
	placemarks   *prometheus.CounterVec
	quarries     prometheus.Gauge
	pendingUsers prometheus.Gauge
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		routes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_requests_total",
			Help:      "Route provider calls by outcome.",
		}, []string{"outcome"}),
		placemarks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_placemarks_total",
			Help:      "Placemarks seen by KML/KMZ imports, by result.",
		}, []string{"result"}),
		quarries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quarries",
			Help:      "Quarry records in the store at the last snapshot.",
		}),
		pendingUsers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users_pending_approval",
			Help:      "Accounts waiting for admin approval at the last snapshot.",
		}),
	}
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveRoute records the outcome of a route provider call.
func (m *Metrics) ObserveRoute(outcome string) {
	if m == nil {
		return
	}
	m.routes.WithLabelValues(outcome).Inc()
}

// ObserveImport records the placemarks created and skipped by one import.
func (m *Metrics) ObserveImport(created, skipped int) {
	if m == nil {
		return
	}
	m.placemarks.WithLabelValues("created").Add(float64(created))
	m.placemarks.WithLabelValues("skipped").Add(float64(skipped))
}

// SetSnapshot publishes dataset gauges from a collected snapshot.
func (m *Metrics) SetSnapshot(s *Snapshot) {
	if m == nil || s == nil {
		return
	}
	m.quarries.Set(float64(s.Quarries))
	m.pendingUsers.Set(float64(s.PendingUsers))
}
