package strategy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoHealthyInstance    = errors.New("no healthy instance available")
	ErrNoInstanceConfigured = errors.New("no instance configured")
)

const (
	RoundRobin       = "round-robin"
	LeastConnections = "least-connections"
	LeastConnAlias   = "least-conn"
)

// Snapshot is the view of one pool a policy selects from. Healthy must
// already be refreshed when the policy reports NeedsHealth.
type Snapshot struct {
	Members []string
	Healthy map[string]bool
	Counts  map[string]int64
	Cursor  uint64
}

type Policy interface {
	Name() string
	// NeedsHealth reports whether Select reads Snapshot.Healthy.
	NeedsHealth() bool
	Select(s Snapshot) (string, error)
}

type Options struct {
	// LeastConnHealthFilter restricts least-connections to healthy members.
	LeastConnHealthFilter bool
}

// New returns the policy registered under name.
func New(name string, opts Options) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case RoundRobin:
		return NewRoundRobinPolicy(), nil
	case LeastConnections, LeastConnAlias:
		return NewLeastConnPolicy(opts.LeastConnHealthFilter), nil
	default:
		return nil, fmt.Errorf("unknown selection policy %q", name)
	}
}
