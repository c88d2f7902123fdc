package router

import (
	"time"

	"github.com/angeloszaimis/service-router/internal/healthcheck"
	"github.com/angeloszaimis/service-router/internal/pool"
)

type Stats struct {
	Policy        string                                `json:"policy"`
	TotalRequests int64                                 `json:"total_requests"`
	StartTime     time.Time                             `json:"start_time"`
	Uptime        time.Duration                         `json:"uptime"`
	FileTierURL   string                                `json:"file_tier_url"`
	Counters      map[pool.Class]map[string]int64       `json:"counters"`
	Health        map[string]healthcheck.InstanceHealth `json:"health"`
}

func (r *Router) TotalRequests() int64 {
	return r.totalRequests.Load()
}

func (r *Router) StartTime() time.Time {
	return r.startTime
}

func (r *Router) Uptime() time.Duration {
	return r.now().Sub(r.startTime)
}

func (r *Router) Policy() string {
	return r.policy.Name()
}

func (r *Router) FileTierURL() string {
	return r.fileTierURL
}

// Counters returns a copy of the request counters of one class. Pool members
// that were never selected are present with a zero count.
func (r *Router) Counters(class pool.Class) map[string]int64 {
	l, ok := r.lanes[class]
	if !ok {
		return map[string]int64{}
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()
	return copyCounts(l.counts)
}

// Health returns the cached record for url without probing.
func (r *Router) Health(url string) (healthcheck.InstanceHealth, bool) {
	return r.prober.Cached(url)
}

// HealthSnapshot returns the cached records of every pool member that has
// been probed at least once.
func (r *Router) HealthSnapshot() map[string]healthcheck.InstanceHealth {
	out := make(map[string]healthcheck.InstanceHealth)

	for _, l := range r.lanes {
		if l.pool == nil {
			continue
		}
		for _, m := range l.pool.Members() {
			if h, ok := r.prober.Cached(m); ok {
				out[m] = h
			}
		}
	}

	return out
}

func (r *Router) Snapshot() Stats {
	counters := make(map[pool.Class]map[string]int64, len(r.lanes))
	for class := range r.lanes {
		counters[class] = r.Counters(class)
	}

	return Stats{
		Policy:        r.Policy(),
		TotalRequests: r.TotalRequests(),
		StartTime:     r.startTime,
		Uptime:        r.Uptime(),
		FileTierURL:   r.fileTierURL,
		Counters:      counters,
		Health:        r.HealthSnapshot(),
	}
}
