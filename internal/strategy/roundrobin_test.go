package strategy_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/service-router/internal/strategy"
)

var _ = Describe("Roundrobin", func() {
	var (
		policy  strategy.Policy
		members []string
		healthy map[string]bool
	)

	BeforeEach(func() {
		policy = strategy.NewRoundRobinPolicy()
		members = []string{"http://w1", "http://w2", "http://w3"}
		healthy = map[string]bool{"http://w1": true, "http://w2": true, "http://w3": true}
	})

	selectAt := func(cursor uint64) (string, error) {
		return policy.Select(strategy.Snapshot{Members: members, Healthy: healthy, Cursor: cursor})
	}

	It("should need health", func() {
		Expect(policy.NeedsHealth()).To(BeTrue())
		Expect(policy.Name()).To(Equal(strategy.RoundRobin))
	})

	Context("with all healthy members", func() {
		It("should cycle in pool order", func() {
			for cursor, want := range []string{"http://w1", "http://w2", "http://w3", "http://w1"} {
				got, err := selectAt(uint64(cursor))
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(want))
			}
		})

		It("should distribute evenly", func() {
			counts := make(map[string]int)
			for cursor := uint64(0); cursor < 300; cursor++ {
				got, _ := selectAt(cursor)
				counts[got]++
			}
			Expect(counts).To(HaveKeyWithValue("http://w1", 100))
			Expect(counts).To(HaveKeyWithValue("http://w2", 100))
			Expect(counts).To(HaveKeyWithValue("http://w3", 100))
		})

		It("should keep every member within one of N/k", func() {
			const n = 301
			counts := make(map[string]int)
			for cursor := uint64(0); cursor < n; cursor++ {
				got, _ := selectAt(cursor)
				counts[got]++
			}
			for _, m := range members {
				Expect(counts[m]).To(BeNumerically(">=", n/3))
				Expect(counts[m]).To(BeNumerically("<=", n/3+1))
			}
		})
	})

	Context("with a down member", func() {
		BeforeEach(func() {
			healthy["http://w2"] = false
		})

		It("should skip it every cycle", func() {
			var got []string
			for cursor := uint64(0); cursor < 4; cursor++ {
				url, err := selectAt(cursor)
				Expect(err).NotTo(HaveOccurred())
				got = append(got, url)
			}
			Expect(got).To(Equal([]string{"http://w1", "http://w3", "http://w1", "http://w3"}))
		})

		It("should treat members missing from the health view as down", func() {
			delete(healthy, "http://w3")
			got, err := selectAt(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("http://w1"))
		})
	})

	It("should remap cursors when the healthy set changes", func() {
		first, _ := selectAt(2)
		Expect(first).To(Equal("http://w3"))

		healthy["http://w1"] = false
		second, _ := selectAt(2)
		Expect(second).To(Equal("http://w2"))
	})

	It("should fail when nothing is healthy", func() {
		healthy = map[string]bool{}
		_, err := selectAt(0)
		Expect(err).To(MatchError(strategy.ErrNoHealthyInstance))
	})

	It("should fail on an empty pool", func() {
		members = nil
		_, err := selectAt(0)
		Expect(err).To(MatchError(strategy.ErrNoInstanceConfigured))
	})
})
