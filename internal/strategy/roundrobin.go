package strategy

type roundRobinPolicy struct{}

func (r *roundRobinPolicy) Name() string {
	return RoundRobin
}

func (r *roundRobinPolicy) NeedsHealth() bool {
	return true
}

// Select returns healthy[cursor % len(healthy)], keeping pool order. Because
// the healthy subset can change between calls, a cursor value does not map to
// a stable member.
func (r *roundRobinPolicy) Select(s Snapshot) (string, error) {
	if len(s.Members) == 0 {
		return "", ErrNoInstanceConfigured
	}

	healthy := make([]string, 0, len(s.Members))
	for _, m := range s.Members {
		if s.Healthy[m] {
			healthy = append(healthy, m)
		}
	}

	if len(healthy) == 0 {
		return "", ErrNoHealthyInstance
	}

	return healthy[s.Cursor%uint64(len(healthy))], nil
}

func NewRoundRobinPolicy() Policy {
	return &roundRobinPolicy{}
}
