package healthcheck

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/angeloszaimis/service-router/internal/metrics"
)

const DefaultTimeout = 2 * time.Second

// Prober checks instances and records the results in its Cache.
type Prober struct {
	client    *http.Client
	cache     *Cache
	logger    *slog.Logger
	collector *metrics.Collector
	now       func() time.Time
}

// NewProber creates a prober writing into cache. A nil collector disables
// probe events.
func NewProber(cache *Cache, timeout time.Duration, logger *slog.Logger, collector *metrics.Collector) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Prober{
		client: &http.Client{
			Timeout: timeout,
		},
		cache:     cache,
		logger:    logger,
		collector: collector,
		now:       time.Now,
	}
}

// Check probes url + "/health" and overwrites the cached record for url.
func (p *Prober) Check(ctx context.Context, url string) InstanceHealth {
	start := p.now()
	health := p.probe(ctx, url, start)
	elapsed := p.now().Sub(start)

	previous, existed := p.cache.Put(health)
	p.logTransition(previous, existed, health)

	p.collector.Emit(metrics.MetricEvent{
		Type:     metrics.EventProbeCompleted,
		Instance: url,
		Duration: elapsed,
		Healthy:  health.Healthy,
	})

	return health
}

// Cached returns the last record for url without probing.
func (p *Prober) Cached(url string) (InstanceHealth, bool) {
	return p.cache.Get(url)
}

func (p *Prober) Cache() *Cache {
	return p.cache
}

func (p *Prober) probe(ctx context.Context, url string, start time.Time) InstanceHealth {
	healthURL := strings.TrimRight(url, "/") + "/health"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		p.logger.Debug("Invalid health check request",
			slog.String("server", url),
			slog.String("error", err.Error()))
		return down(url, p.now())
	}

	res, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("Health check failed",
			slog.String("server", url),
			slog.String("error", err.Error()))
		return down(url, p.now())
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	finished := p.now()
	if res.StatusCode != http.StatusOK {
		p.logger.Debug("Health check returned non-OK status",
			slog.String("server", url),
			slog.Int("status", res.StatusCode))
		return down(url, finished)
	}

	return InstanceHealth{
		URL:            url,
		Healthy:        true,
		LastCheck:      finished,
		ResponseTimeMs: float64(finished.Sub(start).Microseconds()) / 1000,
		Status:         StatusActive,
		Protocol:       res.Proto,
	}
}

func (p *Prober) logTransition(previous InstanceHealth, existed bool, current InstanceHealth) {
	if existed && previous.Healthy == current.Healthy {
		return
	}

	if current.Healthy {
		p.logger.Info("Server is up",
			slog.String("server", current.URL),
			slog.Float64("response_time_ms", current.ResponseTimeMs))
		return
	}

	p.logger.Warn("Server is down", slog.String("server", current.URL))
}
