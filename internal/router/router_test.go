package router_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/service-router/internal/healthcheck"
	"github.com/angeloszaimis/service-router/internal/pool"
	"github.com/angeloszaimis/service-router/internal/router"
	"github.com/angeloszaimis/service-router/internal/strategy"
)

func mustPool(class pool.Class, members ...string) *pool.Pool {
	p, err := pool.New(class, members)
	if err != nil {
		panic(err)
	}
	return p
}

var _ = Describe("Router", func() {
	var (
		log    *slog.Logger
		ctx    context.Context
		prober *fakeProber
		pools  []*pool.Pool
		cfg    router.Config
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
		ctx = context.Background()
		prober = newFakeProber(map[string]bool{
			"http://d1": true, "http://d2": true, "http://d3": true,
			"http://w1": true, "http://w2": false, "http://w3": true,
		})
		pools = []*pool.Pool{
			mustPool(pool.Database, "http://d1", "http://d2", "http://d3"),
			mustPool(pool.Web, "http://w1", "http://w2", "http://w3"),
			mustPool(pool.File, "http://f1", "http://f2", "http://f3"),
		}
		cfg = router.Config{Staleness: 30 * time.Second}
	})

	newRouter := func(policy strategy.Policy) *router.Router {
		r, err := router.New(policy, prober, pools, cfg, log, nil)
		Expect(err).NotTo(HaveOccurred())
		return r
	}

	Describe("New", func() {
		It("should reject a nil policy", func() {
			_, err := router.New(nil, prober, pools, cfg, log, nil)
			Expect(err).To(HaveOccurred())
		})

		It("should reject two pools for one class", func() {
			pools = append(pools, mustPool(pool.Web, "http://w9"))
			_, err := router.New(strategy.NewRoundRobinPolicy(), prober, pools, cfg, log, nil)
			Expect(err).To(HaveOccurred())
		})

		It("should start with zeroed counters", func() {
			r := newRouter(strategy.NewRoundRobinPolicy())
			Expect(r.TotalRequests()).To(BeZero())
			Expect(r.Counters(pool.Web)).To(Equal(map[string]int64{"http://w1": 0, "http://w2": 0, "http://w3": 0}))
			Expect(r.StartTime()).To(BeTemporally("~", time.Now(), time.Second))
			Expect(r.Policy()).To(Equal(strategy.RoundRobin))
		})
	})

	Context("with round robin", func() {
		var r *router.Router

		BeforeEach(func() {
			r = newRouter(strategy.NewRoundRobinPolicy())
		})

		It("should skip the down member every cycle", func() {
			var got []string
			for i := 0; i < 4; i++ {
				url, err := r.Route(ctx, pool.Web)
				Expect(err).NotTo(HaveOccurred())
				got = append(got, url)
			}
			Expect(got).To(Equal([]string{"http://w1", "http://w3", "http://w1", "http://w3"}))
		})

		It("should increment the chosen instance exactly once", func() {
			_, _ = r.Route(ctx, pool.Web)
			_, _ = r.Route(ctx, pool.Web)
			_, _ = r.Route(ctx, pool.Web)

			Expect(r.Counters(pool.Web)).To(Equal(map[string]int64{"http://w1": 2, "http://w2": 0, "http://w3": 1}))
			Expect(r.TotalRequests()).To(Equal(int64(3)))
		})

		It("should keep separate cursors per pool", func() {
			d1, _ := r.Route(ctx, pool.Database)
			w1, _ := r.Route(ctx, pool.Web)
			d2, _ := r.Route(ctx, pool.Database)

			Expect(d1).To(Equal("http://d1"))
			Expect(w1).To(Equal("http://w1"))
			Expect(d2).To(Equal("http://d2"))
		})

		It("should not re-probe fresh records", func() {
			for i := 0; i < 5; i++ {
				_, err := r.Route(ctx, pool.Database)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(prober.checkCount("http://d1")).To(Equal(1))
			Expect(prober.checkCount("http://d2")).To(Equal(1))
		})

		It("should re-probe records older than the staleness window", func() {
			_, _ = r.Route(ctx, pool.Database)
			prober.age("http://d2", 31*time.Second)
			_, _ = r.Route(ctx, pool.Database)

			Expect(prober.checkCount("http://d1")).To(Equal(1))
			Expect(prober.checkCount("http://d2")).To(Equal(2))
		})

		It("should pick up a health change once the record goes stale", func() {
			_, _ = r.Route(ctx, pool.Web)
			prober.setUp("http://w2", true)

			next, _ := r.Route(ctx, pool.Web)
			Expect(next).To(Equal("http://w3"))

			prober.age("http://w2", time.Minute)
			next, _ = r.Route(ctx, pool.Web)
			Expect(next).To(Equal("http://w3"))
			h, ok := r.Health("http://w2")
			Expect(ok).To(BeTrue())
			Expect(h.Healthy).To(BeTrue())
		})

		Context("when every member is down", func() {
			BeforeEach(func() {
				for _, url := range []string{"http://w1", "http://w2", "http://w3"} {
					prober.setUp(url, false)
				}
			})

			It("should return ErrNoHealthyInstance and still count the request", func() {
				url, err := r.Route(ctx, pool.Web)
				Expect(url).To(BeEmpty())
				Expect(errors.Is(err, strategy.ErrNoHealthyInstance)).To(BeTrue())
				Expect(r.TotalRequests()).To(Equal(int64(1)))
				Expect(r.Counters(pool.Web)).To(HaveKeyWithValue("http://w1", int64(0)))
			})

			It("should keep serving other classes", func() {
				_, _ = r.Route(ctx, pool.Web)
				url, err := r.Route(ctx, pool.Database)
				Expect(err).NotTo(HaveOccurred())
				Expect(url).To(Equal("http://d1"))
				Expect(r.TotalRequests()).To(Equal(int64(2)))
			})
		})
	})

	Context("with least connections", func() {
		var r *router.Router

		BeforeEach(func() {
			r = newRouter(strategy.NewLeastConnPolicy(false))
		})

		It("should rotate through tied members", func() {
			var got []string
			for i := 0; i < 4; i++ {
				url, err := r.Route(ctx, pool.Web)
				Expect(err).NotTo(HaveOccurred())
				got = append(got, url)
			}
			Expect(got).To(Equal([]string{"http://w1", "http://w2", "http://w3", "http://w1"}))
		})

		It("should route to down members without probing", func() {
			_, _ = r.Route(ctx, pool.Web)
			url, _ := r.Route(ctx, pool.Web)
			Expect(url).To(Equal("http://w2"))
			Expect(prober.checkCount("http://w2")).To(BeZero())
		})

		It("should skip down members with the health filter", func() {
			r = newRouter(strategy.NewLeastConnPolicy(true))
			var got []string
			for i := 0; i < 3; i++ {
				url, _ := r.Route(ctx, pool.Web)
				got = append(got, url)
			}
			Expect(got).To(Equal([]string{"http://w1", "http://w3", "http://w1"}))
		})
	})

	Describe("File requests", func() {
		It("should short-circuit to the file tier", func() {
			r := newRouter(strategy.NewRoundRobinPolicy())

			url, err := r.Route(ctx, pool.File)
			Expect(err).NotTo(HaveOccurred())
			Expect(url).To(Equal(router.DefaultFileTierURL))
			Expect(r.Counters(pool.File)).To(HaveKeyWithValue(router.DefaultFileTierURL, int64(1)))
			Expect(prober.checkCount("http://f1")).To(BeZero())
		})

		It("should use the configured file tier", func() {
			cfg.FileTierURL = "http://files.internal:9000"
			r := newRouter(strategy.NewLeastConnPolicy(false))

			url, _ := r.Route(ctx, pool.File)
			Expect(url).To(Equal("http://files.internal:9000"))
			Expect(r.TotalRequests()).To(Equal(int64(1)))
		})
	})

	Describe("unconfigured pools", func() {
		It("should return ErrNoInstanceConfigured", func() {
			pools = pools[1:]
			r := newRouter(strategy.NewRoundRobinPolicy())

			_, err := r.Route(ctx, pool.Database)
			Expect(errors.Is(err, strategy.ErrNoInstanceConfigured)).To(BeTrue())
			Expect(r.TotalRequests()).To(Equal(int64(1)))
		})

		It("should return ErrNoInstanceConfigured for an empty pool", func() {
			pools[0] = mustPool(pool.Database)
			r := newRouter(strategy.NewLeastConnPolicy(false))

			_, err := r.Route(ctx, pool.Database)
			Expect(errors.Is(err, strategy.ErrNoInstanceConfigured)).To(BeTrue())
		})
	})

	Describe("CheckHealth", func() {
		It("should always probe", func() {
			r := newRouter(strategy.NewRoundRobinPolicy())

			first := r.CheckHealth(ctx, "http://w1")
			second := r.CheckHealth(ctx, "http://w1")

			Expect(first.Healthy).To(BeTrue())
			Expect(second.Healthy).To(Equal(first.Healthy))
			Expect(prober.checkCount("http://w1")).To(Equal(2))
		})
	})

	Describe("parallel probing", func() {
		BeforeEach(func() {
			cfg.ParallelProbes = true
			cfg.ProbeConcurrency = 3
			prober.delay = 100 * time.Millisecond
		})

		It("should probe stale members concurrently", func() {
			r := newRouter(strategy.NewRoundRobinPolicy())

			start := time.Now()
			url, err := r.Route(ctx, pool.Web)
			Expect(err).NotTo(HaveOccurred())
			Expect(url).To(Equal("http://w1"))
			Expect(time.Since(start)).To(BeNumerically("<", 250*time.Millisecond))

			next, _ := r.Route(ctx, pool.Web)
			Expect(next).To(Equal("http://w3"))
		})
	})

	Describe("concurrent routes", func() {
		It("should count every successful route exactly once", func() {
			r := newRouter(strategy.NewLeastConnPolicy(false))

			var wg sync.WaitGroup
			for i := 0; i < 60; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := r.Route(ctx, pool.Database)
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			Expect(r.TotalRequests()).To(Equal(int64(60)))
			Expect(r.Counters(pool.Database)).To(Equal(map[string]int64{"http://d1": 20, "http://d2": 20, "http://d3": 20}))
		})
	})

	Describe("Snapshot", func() {
		It("should aggregate counters and health", func() {
			r := newRouter(strategy.NewRoundRobinPolicy())
			_, _ = r.Route(ctx, pool.Web)
			_, _ = r.Route(ctx, pool.File)

			snap := r.Snapshot()
			Expect(snap.Policy).To(Equal(strategy.RoundRobin))
			Expect(snap.TotalRequests).To(Equal(int64(2)))
			Expect(snap.Counters[pool.Web]).To(HaveKeyWithValue("http://w1", int64(1)))
			Expect(snap.Counters[pool.File]).To(HaveKeyWithValue(router.DefaultFileTierURL, int64(1)))
			Expect(snap.Health).To(HaveKey("http://w2"))
			Expect(snap.Health["http://w2"].Status).To(Equal(healthcheck.StatusDown))
		})
	})
})

var _ = Describe("Router with live backends", func() {
	var (
		servers []*httptest.Server
		r       *router.Router
	)

	BeforeEach(func() {
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		healthy := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"status":"Healthy"}`))
		})
		down := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		servers = []*httptest.Server{
			httptest.NewServer(healthy),
			httptest.NewServer(down),
			httptest.NewServer(healthy),
		}

		web := mustPool(pool.Web, servers[0].URL, servers[1].URL, servers[2].URL)
		prober := healthcheck.NewProber(healthcheck.NewCache(), 500*time.Millisecond, log, nil)

		var err error
		r, err = router.New(strategy.NewRoundRobinPolicy(), prober, []*pool.Pool{web}, router.Config{Staleness: router.DefaultStaleness}, log, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		for _, s := range servers {
			s.Close()
		}
	})

	It("should alternate between the healthy servers", func() {
		var got []string
		for i := 0; i < 4; i++ {
			url, err := r.Route(context.Background(), pool.Web)
			Expect(err).NotTo(HaveOccurred())
			got = append(got, url)
		}
		Expect(got).To(Equal([]string{servers[0].URL, servers[2].URL, servers[0].URL, servers[2].URL}))

		h, ok := r.Health(servers[1].URL)
		Expect(ok).To(BeTrue())
		Expect(h.Status).To(Equal(healthcheck.StatusDown))
	})

	It("should not mark servers down when the caller has gone away", func() {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		url, err := r.Route(cancelled, pool.Web)
		Expect(err).NotTo(HaveOccurred())
		Expect(url).To(Equal(servers[0].URL))

		h, ok := r.Health(servers[2].URL)
		Expect(ok).To(BeTrue())
		Expect(h.Healthy).To(BeTrue())

		url, err = r.Route(context.Background(), pool.Web)
		Expect(err).NotTo(HaveOccurred())
		Expect(url).To(Equal(servers[2].URL))
	})
})
