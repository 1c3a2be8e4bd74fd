package monitoring

import (
	"context"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health is the body served by the health endpoint.
type Health struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Error  string `json:"error,omitempty"`
}

// Healthy reports whether every dependency answered.
func (h Health) Healthy() bool {
	return h.Status == "ok"
}

// CheckHealth pings the store with a short deadline.
func CheckHealth(ctx context.Context, st Pinger) Health {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := st.Ping(ctx); err != nil {
		return Health{Status: "degraded", Store: "unreachable", Error: err.Error()}
	}
	return Health{Status: "ok", Store: "ok"}
}
