package scheduler_test

import (
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/prio-scheduler/pkg/scheduler"
)

var _ = Describe("Token", func() {
	var tok *scheduler.Token

	BeforeEach(func() {
		tok = scheduler.NewTokenForTest()
	})

	It("should start uncancelled", func() {
		Expect(tok.IsCancelled()).To(BeFalse())
		Expect(tok.Err()).NotTo(HaveOccurred())
		Expect(tok.Done()).NotTo(BeClosed())
	})

	It("should flip the flag and close Done on cancel", func() {
		scheduler.CancelToken(tok)

		Expect(tok.IsCancelled()).To(BeTrue())
		Expect(tok.Err()).To(MatchError(scheduler.ErrPreempted))
		Expect(tok.Done()).To(BeClosed())
	})

	It("should invoke the registered callback once", func() {
		var calls atomic.Int32
		tok.RegisterCancel(func() { calls.Add(1) })

		scheduler.CancelToken(tok)
		scheduler.CancelToken(tok)

		Expect(calls.Load()).To(Equal(int32(1)))
	})

	It("should keep only the last registered callback", func() {
		var first, last atomic.Bool
		tok.RegisterCancel(func() { first.Store(true) })
		tok.RegisterCancel(func() { last.Store(true) })

		scheduler.CancelToken(tok)

		Expect(first.Load()).To(BeFalse())
		Expect(last.Load()).To(BeTrue())
	})

	It("should run a callback registered after cancellation immediately", func() {
		scheduler.CancelToken(tok)

		called := false
		tok.RegisterCancel(func() { called = true })
		Expect(called).To(BeTrue())
	})

	It("should invoke the callback once under concurrent cancels", func() {
		var calls atomic.Int32
		tok.RegisterCancel(func() { calls.Add(1) })

		var wg sync.WaitGroup
		for range 32 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				scheduler.CancelToken(tok)
			}()
		}
		wg.Wait()

		Expect(calls.Load()).To(Equal(int32(1)))
	})
})
