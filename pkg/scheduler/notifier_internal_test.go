package scheduler

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

var _ = Describe("notifier", func() {
	It("should run pushed functions in order and keep going after a panic", func() {
		n := newNotifier(zap.S())

		var (
			mu  sync.Mutex
			got []int
		)
		record := func(i int) func() {
			return func() {
				mu.Lock()
				defer mu.Unlock()
				got = append(got, i)
			}
		}
		n.push(record(1))
		n.push(func() { panic("boom") })
		n.push(record(2))
		n.push(record(3))
		n.close()

		Eventually(n.done).Should(BeClosed())
		mu.Lock()
		defer mu.Unlock()
		Expect(got).To(Equal([]int{1, 2, 3}))
	})

	It("should record the id of its goroutine", func() {
		n := newNotifier(zap.S())
		n.close()
		Eventually(n.done).Should(BeClosed())
		Expect(n.gid.Load()).NotTo(BeZero())
		Expect(n.gid.Load()).NotTo(Equal(goroutineID()))
	})
})

var _ = Describe("goroutineID", func() {
	It("should differ between goroutines and stay stable within one", func() {
		own := goroutineID()
		Expect(own).NotTo(BeZero())
		Expect(goroutineID()).To(Equal(own))

		other := make(chan uint64)
		go func() { other <- goroutineID() }()
		Expect(<-other).NotTo(Equal(own))
	})
})
