package filetier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/angeloszaimis/service-router/internal/backend"
	"github.com/angeloszaimis/service-router/internal/healthcheck"
	"github.com/angeloszaimis/service-router/internal/metrics"
	"github.com/angeloszaimis/service-router/internal/pool"
	"github.com/angeloszaimis/service-router/internal/strategy"
)

type Prober interface {
	Check(ctx context.Context, url string) healthcheck.InstanceHealth
	Cached(url string) (healthcheck.InstanceHealth, bool)
}

// InstanceStats is the load view of one file server.
type InstanceStats struct {
	URL      string  `json:"url"`
	InFlight int     `json:"in_flight"`
	Served   int64   `json:"served"`
	EWMAMs   float64 `json:"ewma_ms"`
	Healthy  bool    `json:"healthy"`
}

type Balancer struct {
	pool      *pool.Pool
	instances map[string]*backend.Instance
	policy    strategy.Policy
	prober    Prober
	staleness time.Duration

	mutex  sync.Mutex
	cursor uint64

	logger    *slog.Logger
	collector *metrics.Collector
	now       func() time.Time
}

// New builds a balancer over a file pool. Staleness zero probes every member
// on every upload.
func New(
	p *pool.Pool,
	prober Prober,
	staleness time.Duration,
	logger *slog.Logger,
	collector *metrics.Collector,
) (*Balancer, error) {
	if p == nil {
		return nil, fmt.Errorf("filetier: nil pool")
	}
	if prober == nil {
		return nil, fmt.Errorf("filetier: nil prober")
	}
	if staleness < 0 {
		staleness = 0
	}

	b := &Balancer{
		pool:      p,
		instances: make(map[string]*backend.Instance, p.Len()),
		policy:    strategy.NewRoundRobinPolicy(),
		prober:    prober,
		staleness: staleness,
		logger:    logger,
		collector: collector,
		now:       time.Now,
	}

	for _, member := range p.Members() {
		inst, err := backend.New(member)
		if err != nil {
			return nil, fmt.Errorf("filetier: instance %q: %w", member, err)
		}
		inst.ReverseProxy().ErrorHandler = b.proxyError(member)
		b.instances[member] = inst
	}

	return b, nil
}

// Next refreshes stale health records and returns the next healthy file
// server. The cursor only advances when a server was found.
func (b *Balancer) Next(ctx context.Context) (*backend.Instance, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	// Cancelling the upload must not mark file servers down.
	probeCtx := context.WithoutCancel(ctx)

	members := b.pool.Members()
	healthy := make(map[string]bool, len(members))

	for _, m := range members {
		h, ok := b.prober.Cached(m)
		if !ok || b.staleness == 0 || h.Stale(b.staleness, b.now()) {
			h = b.prober.Check(probeCtx, m)
		}
		healthy[m] = h.Healthy
	}

	chosen, err := b.policy.Select(strategy.Snapshot{
		Members: members,
		Healthy: healthy,
		Cursor:  b.cursor,
	})
	if err != nil {
		return nil, err
	}

	b.cursor++
	return b.instances[chosen], nil
}

// Watch keeps the health cache warm between uploads until ctx is cancelled.
func (b *Balancer) Watch(ctx context.Context, interval time.Duration) {
	healthcheck.Watch(ctx, b.prober, b.pool.Members(), interval, b.logger)
}

// Stats reports every file server in pool order.
func (b *Balancer) Stats() []InstanceStats {
	members := b.pool.Members()
	stats := make([]InstanceStats, 0, len(members))

	for _, m := range members {
		inst := b.instances[m]
		h, _ := b.prober.Cached(m)
		stats = append(stats, InstanceStats{
			URL:      m,
			InFlight: inst.InFlight(),
			Served:   inst.Served(),
			EWMAMs:   float64(inst.EWMATime()) / float64(time.Millisecond),
			Healthy:  h.Healthy,
		})
	}

	return stats
}
