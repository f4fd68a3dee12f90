package main

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1 "github.com/kubev2v/prio-scheduler/api/v1"
	"github.com/kubev2v/prio-scheduler/pkg/client"
	srvErrors "github.com/kubev2v/prio-scheduler/pkg/errors"
	"github.com/kubev2v/prio-scheduler/test/e2e/infra"
)

var _ = Describe("prioschedd", Ordered, func() {
	var (
		ctx     context.Context
		baseURL string
		c       *client.Client
	)

	jobState := func(id string) func() (v1.JobState, error) {
		return func() (v1.JobState, error) {
			j, err := c.GetJob(ctx, id)
			if err != nil {
				return "", err
			}
			return j.State, nil
		}
	}

	BeforeAll(func() {
		ctx = context.Background()

		var err error
		baseURL, err = infraManager.StartDaemon(infra.DaemonConfig{
			DataFolder:      filepath.Join(cfg.WorkDir, "data"),
			ShutdownTimeout: "5s",
		})
		Expect(err).NotTo(HaveOccurred())

		token, err := infraManager.GenerateToken("e2e")
		Expect(err).NotTo(HaveOccurred())
		c, err = client.NewClient(baseURL, token)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		Expect(infraManager.StopDaemon()).To(Succeed())
	})

	It("should reject requests without a token", func() {
		if cfg.InfraMode == "external" && cfg.SecretFile == "" {
			Skip("external daemon runs without auth")
		}
		anon, err := client.NewClient(baseURL, "")
		Expect(err).NotTo(HaveOccurred())
		_, err = anon.GetSchedulerStatus(ctx)
		Expect(srvErrors.IsUnauthorizedError(err)).To(BeTrue())
	})

	It("should run a higher priority job ahead of a running one", func() {
		low, err := c.SubmitJob(ctx, v1.JobRequest{Kind: "sleep", Priority: "low", Input: "500ms"})
		Expect(err).NotTo(HaveOccurred())
		Eventually(jobState(low.Id), 5*time.Second, 20*time.Millisecond).Should(Equal(v1.JobStateRunning))

		high, err := c.SubmitJob(ctx, v1.JobRequest{Kind: "checksum", Priority: "higher", Input: "1000:e2e"})
		Expect(err).NotTo(HaveOccurred())

		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		h, err := c.WaitForJob(waitCtx, high.Id, 20*time.Millisecond)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.State).To(Equal(v1.JobStateCompleted))

		l, err := c.WaitForJob(waitCtx, low.Id, 20*time.Millisecond)
		Expect(err).NotTo(HaveOccurred())
		Expect(l.State).To(Equal(v1.JobStateCompleted))
		Expect(l.Preemptions).To(Equal(1))
		Expect(l.UpdatedAt).To(BeTemporally(">", h.UpdatedAt))
	})

	It("should admit a delayed job after its delay", func() {
		job, err := c.SubmitJob(ctx, v1.JobRequest{Kind: "sleep", Input: "1ms", Delay: "300ms"})
		Expect(err).NotTo(HaveOccurred())
		Expect(job.State).To(Equal(v1.JobStateDelayed))

		Consistently(jobState(job.Id), 150*time.Millisecond, 20*time.Millisecond).Should(Equal(v1.JobStateDelayed))
		Eventually(jobState(job.Id), 5*time.Second, 20*time.Millisecond).Should(Equal(v1.JobStateCompleted))
	})

	It("should cancel a queued job and refuse to cancel it twice", func() {
		job, err := c.SubmitJob(ctx, v1.JobRequest{Kind: "sleep", Delay: "1h"})
		Expect(err).NotTo(HaveOccurred())

		cancelled, err := c.CancelJob(ctx, job.Id)
		Expect(err).NotTo(HaveOccurred())
		Expect(cancelled.State).To(Equal(v1.JobStateCancelled))

		_, err = c.CancelJob(ctx, job.Id)
		Expect(srvErrors.IsJobFinishedError(err)).To(BeTrue())
	})

	It("should fail unfinished jobs across a restart and keep finished ones", func() {
		if !infraManager.CanRestart() {
			Skip("daemon is managed externally")
		}

		done, err := c.SubmitJob(ctx, v1.JobRequest{Kind: "checksum", Priority: "high", Input: "10:keep"})
		Expect(err).NotTo(HaveOccurred())
		Eventually(jobState(done.Id), 5*time.Second, 20*time.Millisecond).Should(Equal(v1.JobStateCompleted))

		pending, err := c.SubmitJob(ctx, v1.JobRequest{Kind: "sleep", Delay: "1h"})
		Expect(err).NotTo(HaveOccurred())

		Expect(infraManager.RestartDaemon()).To(Succeed())

		Expect(c.GetJob(ctx, done.Id)).To(HaveField("State", v1.JobStateCompleted))
		after, err := c.GetJob(ctx, pending.Id)
		Expect(err).NotTo(HaveOccurred())
		Expect(after.State).To(Equal(v1.JobStateFailed))
		Expect(after.Error).NotTo(BeNil())
	})
})
