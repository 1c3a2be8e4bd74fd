package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/kgm-ocak/ocak-map/internal/model"
)

// Snapshot holds a point-in-time view of the dataset.
type Snapshot struct {
	Quarries     int       `json:"quarries"`
	Provinces    int       `json:"provinces"`
	PendingUsers int       `json:"pending_users"`
	CollectedAt  time.Time `json:"collected_at"`
}

// DatasetSource is the slice of the store the collector reads.
type DatasetSource interface {
	CountQuarries(ctx context.Context) (int, error)
	ListProvinces(ctx context.Context) ([]model.Province, error)
	ListPendingUsers(ctx context.Context) ([]model.User, error)
}

// Collector gathers dataset counts from the store.
type Collector struct {
	src DatasetSource
	now func() time.Time
}

// NewCollector creates a new dataset collector.
func NewCollector(src DatasetSource) *Collector {
	return &Collector{src: src, now: time.Now}
}

// Collect gathers a snapshot of the dataset.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{CollectedAt: c.now().UTC()}

	n, err := c.src.CountQuarries(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count quarries")
	}
	snap.Quarries = n

	provinces, err := c.src.ListProvinces(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list provinces")
	}
	snap.Provinces = len(provinces)

	pending, err := c.src.ListPendingUsers(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list pending users")
	}
	snap.PendingUsers = len(pending)

	return snap, nil
}
