package main

import (
	"github.com/angeloszaimis/service-router/config"
	"github.com/angeloszaimis/service-router/internal/pool"
	"github.com/angeloszaimis/service-router/internal/router"
	"github.com/angeloszaimis/service-router/internal/strategy"
)

// buildPools turns the configured member lists into pools. Empty lists are
// skipped so routing to that class reports no instance configured.
func buildPools(cfg config.PoolsConfig) ([]*pool.Pool, error) {
	members := map[pool.Class][]string{
		pool.Database: cfg.Database,
		pool.Web:      cfg.Web,
		pool.File:     cfg.File,
	}

	var pools []*pool.Pool
	for _, class := range pool.Classes {
		if len(members[class]) == 0 {
			continue
		}

		p, err := pool.New(class, members[class])
		if err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}

	return pools, nil
}

func createPolicy(cfg config.RouterConfig) (strategy.Policy, error) {
	return strategy.New(cfg.Strategy, strategy.Options{
		LeastConnHealthFilter: cfg.LeastConnHealthFilter,
	})
}

func routerConfig(cfg config.RouterConfig) router.Config {
	return router.Config{
		FileTierURL:      cfg.FileTierURL,
		Staleness:        cfg.Staleness,
		ParallelProbes:   cfg.ParallelProbes,
		ProbeConcurrency: cfg.ProbeConcurrency,
	}
}
