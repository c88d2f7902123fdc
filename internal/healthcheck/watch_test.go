package healthcheck_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/service-router/internal/healthcheck"
)

type countingChecker struct {
	mutex sync.Mutex
	calls map[string]int
}

func (c *countingChecker) Check(_ context.Context, url string) healthcheck.InstanceHealth {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.calls[url]++
	return healthcheck.InstanceHealth{URL: url, Healthy: true, LastCheck: time.Now()}
}

func (c *countingChecker) count(url string) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.calls[url]
}

var _ = Describe("Watch", func() {
	var (
		checker *countingChecker
		log     *slog.Logger
	)

	BeforeEach(func() {
		checker = &countingChecker{calls: make(map[string]int)}
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	})

	It("should probe immediately and then on every tick", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go healthcheck.Watch(ctx, checker, []string{"http://a", "http://b"}, 50*time.Millisecond, log)

		Eventually(func() int { return checker.count("http://a") }).Should(BeNumerically(">=", 1))
		Eventually(func() int { return checker.count("http://b") }).Should(BeNumerically(">=", 3))
	})

	It("should return at once for a non-positive interval", func() {
		for _, interval := range []time.Duration{0, -time.Second} {
			done := make(chan struct{})
			go func() {
				healthcheck.Watch(context.Background(), checker, []string{"http://a"}, interval, log)
				close(done)
			}()
			Eventually(done).Should(BeClosed())
		}
		Expect(checker.count("http://a")).To(BeZero())
	})

	It("should stop when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		go func() {
			healthcheck.Watch(ctx, checker, []string{"http://a"}, 20*time.Millisecond, log)
			close(done)
		}()

		cancel()
		Eventually(done).Should(BeClosed())
	})
})
