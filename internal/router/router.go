package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/service-router/internal/healthcheck"
	"github.com/angeloszaimis/service-router/internal/metrics"
	"github.com/angeloszaimis/service-router/internal/pool"
	"github.com/angeloszaimis/service-router/internal/strategy"
)

const (
	DefaultFileTierURL      = "http://localhost:8704"
	DefaultStaleness        = 30 * time.Second
	DefaultProbeConcurrency = 4
)

// Prober is the health source the router refreshes and reads.
type Prober interface {
	Check(ctx context.Context, url string) healthcheck.InstanceHealth
	Cached(url string) (healthcheck.InstanceHealth, bool)
}

type Config struct {
	FileTierURL string
	// Staleness is how long a cached health record is trusted. Zero
	// re-probes on every route; negative selects DefaultStaleness.
	Staleness        time.Duration
	ParallelProbes   bool
	ProbeConcurrency int
}

type lane struct {
	mutex  sync.Mutex
	pool   *pool.Pool
	cursor uint64
	counts map[string]int64
}

type Router struct {
	policy      strategy.Policy
	prober      Prober
	lanes       map[pool.Class]*lane
	fileTierURL string
	staleness   time.Duration
	parallel    bool
	probeLimit  int

	totalRequests atomic.Int64
	startTime     time.Time

	logger    *slog.Logger
	collector *metrics.Collector
	now       func() time.Time
}

// New builds a router over pools. At most one pool per class is accepted.
// A nil collector disables route events.
func New(
	policy strategy.Policy,
	prober Prober,
	pools []*pool.Pool,
	cfg Config,
	logger *slog.Logger,
	collector *metrics.Collector,
) (*Router, error) {
	if policy == nil {
		return nil, fmt.Errorf("router: nil selection policy")
	}
	if prober == nil {
		return nil, fmt.Errorf("router: nil prober")
	}

	if cfg.FileTierURL == "" {
		cfg.FileTierURL = DefaultFileTierURL
	}
	if cfg.Staleness < 0 {
		cfg.Staleness = DefaultStaleness
	}
	if cfg.ProbeConcurrency < 1 {
		cfg.ProbeConcurrency = DefaultProbeConcurrency
	}

	r := &Router{
		policy:      policy,
		prober:      prober,
		lanes:       make(map[pool.Class]*lane, len(pool.Classes)),
		fileTierURL: cfg.FileTierURL,
		staleness:   cfg.Staleness,
		parallel:    cfg.ParallelProbes,
		probeLimit:  cfg.ProbeConcurrency,
		startTime:   time.Now(),
		logger:      logger,
		collector:   collector,
		now:         time.Now,
	}

	for _, p := range pools {
		if p == nil {
			continue
		}
		if _, dup := r.lanes[p.Class()]; dup {
			return nil, fmt.Errorf("router: duplicate pool for %s", p.Class())
		}
		r.lanes[p.Class()] = newLane(p)
	}

	if _, ok := r.lanes[pool.File]; !ok {
		r.lanes[pool.File] = newLane(nil)
	}

	return r, nil
}

func newLane(p *pool.Pool) *lane {
	l := &lane{pool: p, counts: make(map[string]int64)}
	if p != nil {
		for _, m := range p.Members() {
			l.counts[m] = 0
		}
	}
	return l
}

// Route picks the instance that should serve a request of the given class.
// The request is counted in TotalRequests whether or not routing succeeds.
func (r *Router) Route(ctx context.Context, class pool.Class) (string, error) {
	r.totalRequests.Add(1)

	if class == pool.File {
		return r.routeFile(), nil
	}

	l, ok := r.lanes[class]
	if !ok || l.pool == nil {
		return "", r.fail(class, strategy.ErrNoInstanceConfigured)
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	snap := strategy.Snapshot{
		Members: l.pool.Members(),
		Counts:  copyCounts(l.counts),
		Cursor:  l.cursor,
	}
	if r.policy.NeedsHealth() {
		snap.Healthy = r.refresh(ctx, snap.Members)
	}

	instance, err := r.policy.Select(snap)
	if err != nil {
		return "", r.fail(class, err)
	}

	l.cursor++
	l.counts[instance]++

	r.logger.Debug("Routed request",
		slog.String("class", class.String()),
		slog.String("instance", instance),
		slog.String("policy", r.policy.Name()))

	r.collector.Emit(metrics.MetricEvent{
		Type:     metrics.EventRouteServed,
		Class:    class.String(),
		Instance: instance,
	})

	return instance, nil
}

func (r *Router) routeFile() string {
	l := r.lanes[pool.File]

	l.mutex.Lock()
	l.counts[r.fileTierURL]++
	l.mutex.Unlock()

	r.collector.Emit(metrics.MetricEvent{
		Type:     metrics.EventRouteServed,
		Class:    pool.File.String(),
		Instance: r.fileTierURL,
	})

	return r.fileTierURL
}

func (r *Router) fail(class pool.Class, cause error) error {
	err := fmt.Errorf("route %s request: %w", class, cause)

	r.logger.Warn("No instance available",
		slog.String("class", class.String()),
		slog.String("policy", r.policy.Name()),
		slog.String("error", cause.Error()))

	r.collector.Emit(metrics.MetricEvent{
		Type:  metrics.EventRouteFailed,
		Class: class.String(),
	})

	return err
}

// refresh re-probes members whose records are missing or stale and returns
// the health view the policy selects from. The view is built only after every
// probe has finished. Probes ignore caller cancellation and are bounded by
// the prober timeout alone.
func (r *Router) refresh(ctx context.Context, members []string) map[string]bool {
	ctx = context.WithoutCancel(ctx)
	now := r.now()
	healthy := make(map[string]bool, len(members))

	var stale []string
	for _, m := range members {
		h, ok := r.prober.Cached(m)
		if !ok || h.Stale(r.staleness, now) {
			stale = append(stale, m)
			continue
		}
		healthy[m] = h.Healthy
	}

	if !r.parallel || len(stale) < 2 {
		for _, m := range stale {
			healthy[m] = r.prober.Check(ctx, m).Healthy
		}
		return healthy
	}

	var (
		mutex sync.Mutex
		g     errgroup.Group
	)
	g.SetLimit(r.probeLimit)

	for _, m := range stale {
		g.Go(func() error {
			h := r.prober.Check(ctx, m)
			mutex.Lock()
			healthy[m] = h.Healthy
			mutex.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return healthy
}

// CheckHealth always probes url, replacing its cached record.
func (r *Router) CheckHealth(ctx context.Context, url string) healthcheck.InstanceHealth {
	return r.prober.Check(ctx, url)
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
