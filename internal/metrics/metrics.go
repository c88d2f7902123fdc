package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxSamples = 1000

type Metrics struct {
	mutex        sync.RWMutex
	routed       map[string]int64
	failures     map[string]int64
	probes       map[string]int64
	probeTimes   map[string][]time.Duration
	healthStatus map[string]bool
	statusCodes  map[string]map[int]int64
	startTime    time.Time
}

type Snapshot struct {
	Policy      string                     `json:"policy"`
	Uptime      time.Duration              `json:"uptime"`
	TotalRouted int64                      `json:"total_routed"`
	TotalFailed int64                      `json:"total_failed"`
	Failures    map[string]int64           `json:"failures"`
	Instances   map[string]InstanceMetrics `json:"instances"`
}

type InstanceMetrics struct {
	Routed      int64         `json:"routed"`
	Probes      int64         `json:"probes"`
	Healthy     bool          `json:"healthy"`
	AvgProbe    time.Duration `json:"avg_probe"`
	P50Probe    time.Duration `json:"p50_probe"`
	P95Probe    time.Duration `json:"p95_probe"`
	P99Probe    time.Duration `json:"p99_probe"`
	StatusCodes map[int]int64 `json:"status_codes,omitempty"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		routed:       make(map[string]int64),
		failures:     make(map[string]int64),
		probes:       make(map[string]int64),
		probeTimes:   make(map[string][]time.Duration),
		healthStatus: make(map[string]bool),
		statusCodes:  make(map[string]map[int]int64),
		startTime:    time.Now(),
	}
}

func (m *Metrics) RecordRoute(instance string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.routed[instance]++
}

func (m *Metrics) RecordFailure(class string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failures[class]++
}

// RecordProbe stores the probe outcome. Latency samples are only kept for
// successful probes; a failed probe has no meaningful round trip.
func (m *Metrics) RecordProbe(instance string, duration time.Duration, healthy bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.probes[instance]++
	m.healthStatus[instance] = healthy

	if !healthy {
		return
	}

	m.probeTimes[instance] = append(m.probeTimes[instance], duration)
	if len(m.probeTimes[instance]) > maxSamples {
		m.probeTimes[instance] = m.probeTimes[instance][1:]
	}
}

func (m *Metrics) RecordStatus(instance string, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.statusCodes[instance] == nil {
		m.statusCodes[instance] = make(map[int]int64)
	}
	m.statusCodes[instance][statusCode]++
}

func (m *Metrics) Snapshot(policy string) Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Policy:    policy,
		Uptime:    time.Since(m.startTime),
		Failures:  make(map[string]int64, len(m.failures)),
		Instances: make(map[string]InstanceMetrics),
	}

	for class, n := range m.failures {
		snap.Failures[class] = n
		snap.TotalFailed += n
	}

	seen := make(map[string]bool)
	for instance := range m.routed {
		seen[instance] = true
	}
	for instance := range m.probes {
		seen[instance] = true
	}
	for instance := range m.statusCodes {
		seen[instance] = true
	}

	for instance := range seen {
		snap.TotalRouted += m.routed[instance]

		im := InstanceMetrics{
			Routed:  m.routed[instance],
			Probes:  m.probes[instance],
			Healthy: m.healthStatus[instance],
		}

		if codes := m.statusCodes[instance]; len(codes) > 0 {
			im.StatusCodes = make(map[int]int64, len(codes))
			for code, n := range codes {
				im.StatusCodes[code] = n
			}
		}

		if samples := m.probeTimes[instance]; len(samples) > 0 {
			sorted := make([]time.Duration, len(samples))
			copy(sorted, samples)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			im.AvgProbe = average(sorted)
			im.P50Probe = percentile(sorted, 0.50)
			im.P95Probe = percentile(sorted, 0.95)
			im.P99Probe = percentile(sorted, 0.99)
		}

		snap.Instances[instance] = im
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
