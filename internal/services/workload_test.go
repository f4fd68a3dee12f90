package services_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/prio-scheduler/internal/services"
	"github.com/kubev2v/prio-scheduler/pkg/scheduler"
)

const preemptionWorkload = `
name: preemption
steps:
  - name: urgent
    kind: checksum
    priority: higher
    at: 40ms
    input: "100:payload"
  - name: background
    kind: sleep
    priority: low
    input: 150ms
  - name: later
    kind: sleep
    priority: low
    delay: 20ms
    input: 1ms
`

var _ = Describe("Workload", func() {
	Context("ParseWorkload", func() {
		It("should parse and order steps by offset", func() {
			w, err := services.ParseWorkload([]byte(preemptionWorkload))
			Expect(err).NotTo(HaveOccurred())

			Expect(w.Name).To(Equal("preemption"))
			Expect(w.Steps).To(HaveLen(3))
			Expect(w.Steps[0].Name).To(Equal("background"))
			Expect(w.Steps[0].Priority).To(Equal(scheduler.Low))
			Expect(w.Steps[0].At).To(BeZero())
			Expect(w.Steps[1].Name).To(Equal("later"))
			Expect(w.Steps[1].Delay).To(Equal(20 * time.Millisecond))
			Expect(w.Steps[2].Name).To(Equal("urgent"))
			Expect(w.Steps[2].At).To(Equal(40 * time.Millisecond))
		})

		It("should name unnamed steps and default the priority", func() {
			w, err := services.ParseWorkload([]byte("steps:\n  - kind: fail\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Steps[0].Name).To(Equal("step-1"))
			Expect(w.Steps[0].Priority).To(Equal(scheduler.Normal))
		})

		DescribeTable("should reject",
			func(doc, msg string) {
				_, err := services.ParseWorkload([]byte(doc))
				Expect(err).To(MatchError(ContainSubstring(msg)))
			},
			Entry("no steps", "name: empty\n", "no steps"),
			Entry("missing kind", "steps:\n  - name: a\n", "kind is required"),
			Entry("bad priority", "steps:\n  - kind: fail\n    priority: urgent\n", "invalid priority"),
			Entry("bad offset", "steps:\n  - kind: fail\n    at: soon\n", "at:"),
			Entry("negative delay", "steps:\n  - kind: fail\n    delay: -1s\n", "negative duration"),
			Entry("duplicate names", "steps:\n  - name: a\n    kind: fail\n  - name: a\n    kind: fail\n", "duplicate step name"),
		)

		It("should load from a file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "w.yaml")
			Expect(os.WriteFile(path, []byte(preemptionWorkload), 0o600)).To(Succeed())

			w, err := services.LoadWorkload(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Steps).To(HaveLen(3))

			_, err = services.LoadWorkload(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
			Expect(err).To(HaveOccurred())
		})
	})

	Context("Replayer", func() {
		var r *services.Replayer

		BeforeEach(func() {
			r = services.NewReplayer(services.NewBuiltinRegistry())
		})

		// Given a low priority sleep followed by a higher priority checksum
		// When the workload is replayed
		// Then the sleep is preempted once and every step finishes
		It("should record preemption in the timeline", func() {
			w, err := services.ParseWorkload([]byte(preemptionWorkload))
			Expect(err).NotTo(HaveOccurred())

			tl, err := r.Run(context.Background(), w)
			Expect(err).NotTo(HaveOccurred())

			Expect(tl.Workload).To(Equal("preemption"))
			Expect(tl.Results).To(HaveLen(3))
			for _, res := range tl.Results {
				Expect(res.Err).NotTo(HaveOccurred(), res.Step)
			}
			Expect(tl.Results[0].Step).To(Equal("background"))
			Expect(tl.Results[0].Attempts).To(Equal(2))
			Expect(tl.Results[2].Attempts).To(Equal(1))

			var preempted []string
			for _, e := range tl.Events {
				if e.Kind == scheduler.EventFinished && e.Outcome == scheduler.OutcomePreempted {
					preempted = append(preempted, e.Step)
				}
			}
			Expect(preempted).To(Equal([]string{"background"}))
		})

		It("should report cancelled steps", func() {
			w, err := services.ParseWorkload([]byte(`
steps:
  - name: parked
    kind: sleep
    delay: 1h
    cancel_after: 10ms
  - name: quick
    kind: sleep
    input: 1ms
`))
			Expect(err).NotTo(HaveOccurred())

			tl, err := r.Run(context.Background(), w)
			Expect(err).NotTo(HaveOccurred())
			Expect(tl.Results[0].Err).To(MatchError(scheduler.ErrCancelled))
			Expect(tl.Results[0].Attempts).To(Equal(0))
			Expect(tl.Results[1].Err).NotTo(HaveOccurred())
		})

		It("should reject unknown kinds before running", func() {
			w := &services.Workload{Steps: []services.WorkloadStep{{Name: "a", Kind: "nope"}}}
			_, err := r.Run(context.Background(), w)
			Expect(err).To(MatchError(ContainSubstring("unknown job kind")))
		})

		It("should stop when the context is cancelled", func() {
			w := &services.Workload{Steps: []services.WorkloadStep{
				{Name: "a", Kind: "sleep", Input: "5s"},
			}}
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			_, err := r.Run(ctx, w)
			Expect(err).To(MatchError(context.DeadlineExceeded))
		})
	})
})
