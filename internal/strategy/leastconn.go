package strategy

import (
	"math"
)

type leastConnPolicy struct {
	healthFilter bool
}

func (l *leastConnPolicy) Name() string {
	return LeastConnections
}

func (l *leastConnPolicy) NeedsHealth() bool {
	return l.healthFilter
}

// Select returns the member with the strictly smallest count. Members without
// a count are at zero. Health is ignored unless the filter is enabled.
func (l *leastConnPolicy) Select(s Snapshot) (string, error) {
	if len(s.Members) == 0 {
		return "", ErrNoInstanceConfigured
	}

	best := ""
	bestCount := int64(math.MaxInt64)

	for _, m := range s.Members {
		if l.healthFilter && !s.Healthy[m] {
			continue
		}

		if count := s.Counts[m]; count < bestCount {
			bestCount = count
			best = m
		}
	}

	if best == "" {
		return "", ErrNoHealthyInstance
	}

	return best, nil
}

// NewLeastConnPolicy builds the least-connections policy. With healthFilter
// false it considers every member regardless of health.
func NewLeastConnPolicy(healthFilter bool) Policy {
	return &leastConnPolicy{healthFilter: healthFilter}
}
