package services_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/prio-scheduler/internal/services"
	"github.com/kubev2v/prio-scheduler/pkg/scheduler"
)

var _ = Describe("Computations", func() {
	Context("Registry", func() {
		It("should hold the builtin kinds", func() {
			r := services.NewBuiltinRegistry()
			Expect(r.Kinds()).To(Equal([]string{"checksum", "fail", "sleep"}))

			_, ok := r.Lookup("sleep")
			Expect(ok).To(BeTrue())
			_, ok = r.Lookup("nope")
			Expect(ok).To(BeFalse())
		})

		It("should replace a kind on re-registration", func() {
			r := services.NewBuiltinRegistry()
			r.Register("fail", func(string, *scheduler.Token) (string, error) { return "ok", nil })

			fn, _ := r.Lookup("fail")
			Expect(fn("", nil)).To(Equal("ok"))
		})
	})

	Context("Checksum", func() {
		It("should hash once with a single round", func() {
			sum, err := services.Checksum("1:abc", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(sum).To(Equal("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"))
		})

		It("should treat a non-numeric prefix as payload", func() {
			a, err := services.Checksum("2:x:y", nil)
			Expect(err).NotTo(HaveOccurred())
			b, err := services.Checksum("2:x:y", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(Equal(b))
			Expect(a).To(HaveLen(64))
		})

		It("should reject zero rounds", func() {
			_, err := services.Checksum("0:abc", nil)
			Expect(err).To(MatchError(ContainSubstring("invalid checksum rounds")))
		})
	})

	Context("Fail", func() {
		It("should fail with the input as message", func() {
			_, err := services.Fail("boom", nil)
			Expect(err).To(MatchError("boom"))

			_, err = services.Fail("", nil)
			Expect(err).To(MatchError("job failed"))
		})
	})

	Context("Sleep", func() {
		var s *scheduler.Scheduler

		BeforeEach(func() {
			s = scheduler.NewScheduler()
		})

		AfterEach(func() {
			s.Close()
		})

		It("should sleep for the requested duration", func() {
			start := time.Now()
			f := scheduler.Submit(s, scheduler.Normal, services.Sleep, "30ms")

			v, err := f.Wait(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("slept 30ms"))
			Expect(time.Since(start)).To(BeNumerically(">=", 30*time.Millisecond))
		})

		It("should reject a malformed duration", func() {
			f := scheduler.Submit(s, scheduler.Normal, services.Sleep, "soon")

			_, err := f.Wait(context.Background())
			Expect(err).To(MatchError(ContainSubstring("invalid sleep duration")))
		})

		// Given a long sleep at low priority
		// When a higher priority job arrives
		// Then the sleep should yield quickly and run again afterwards
		It("should yield to higher priority work", func() {
			long := scheduler.Submit(s, scheduler.Low, services.Sleep, "300ms")
			Eventually(func() bool { return s.Stats().Running }).Should(BeTrue())

			start := time.Now()
			quick := scheduler.Submit(s, scheduler.Higher, services.Sleep, "1ms")

			_, err := quick.Wait(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(time.Since(start)).To(BeNumerically("<", 200*time.Millisecond))

			v, err := long.Wait(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("slept 300ms"))
		})
	})
})
