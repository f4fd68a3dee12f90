package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/prio-scheduler/internal/models"
	"github.com/kubev2v/prio-scheduler/internal/store"
	"github.com/kubev2v/prio-scheduler/internal/store/migrations"
	srvErrors "github.com/kubev2v/prio-scheduler/pkg/errors"
)

var _ = Describe("JobStore", func() {
	var (
		ctx context.Context
		s   *store.Store
		db  *sql.DB
	)

	newJob := func(id, kind, priority string, state models.JobState, createdAt time.Time) *models.Job {
		return &models.Job{
			ID:        id,
			Kind:      kind,
			Priority:  priority,
			State:     state,
			Input:     "in-" + id,
			CreatedAt: createdAt,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		db, err = store.NewDB(":memory:")
		Expect(err).NotTo(HaveOccurred())

		err = migrations.Run(ctx, db)
		Expect(err).NotTo(HaveOccurred())

		s = store.NewStore(db)
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Context("Get", func() {
		// Given an empty journal
		// When we get a job by id
		// Then it should return a ResourceNotFoundError
		It("should return ResourceNotFoundError for an unknown job", func() {
			// Act
			_, err := s.Jobs().Get(ctx, "missing")

			// Assert
			Expect(err).To(HaveOccurred())
			Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
		})

		// Given a created job
		// When we get it back
		// Then every field should round trip
		It("should return a created job", func() {
			// Arrange
			job := newJob("a", "sleep", "high", models.JobStateDelayed, time.Now().UTC().Truncate(time.Millisecond))
			job.Delay = 250 * time.Millisecond
			Expect(s.Jobs().Create(ctx, job)).To(Succeed())

			// Act
			got, err := s.Jobs().Get(ctx, "a")

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Kind).To(Equal("sleep"))
			Expect(got.Priority).To(Equal("high"))
			Expect(got.State).To(Equal(models.JobStateDelayed))
			Expect(got.Input).To(Equal("in-a"))
			Expect(got.Delay).To(Equal(250 * time.Millisecond))
			Expect(got.CreatedAt).To(BeTemporally("~", job.CreatedAt, time.Millisecond))
		})
	})

	Context("Create", func() {
		It("should reject an unknown priority", func() {
			err := s.Jobs().Create(ctx, newJob("a", "sleep", "urgent", models.JobStateQueued, time.Time{}))
			Expect(srvErrors.IsInvalidRequestError(err)).To(BeTrue())
		})

		It("should reject a duplicate id", func() {
			Expect(s.Jobs().Create(ctx, newJob("a", "sleep", "low", models.JobStateQueued, time.Time{}))).To(Succeed())
			Expect(s.Jobs().Create(ctx, newJob("a", "sleep", "low", models.JobStateQueued, time.Time{}))).NotTo(Succeed())
		})
	})

	Context("state transitions", func() {
		BeforeEach(func() {
			Expect(s.Jobs().Create(ctx, newJob("a", "sleep", "low", models.JobStateQueued, time.Time{}))).To(Succeed())
		})

		// Given a queued job
		// When it is dispatched, preempted, dispatched again and completed
		// Then the counters and history should reflect both attempts
		It("should record attempts and preemptions", func() {
			// Act
			Expect(s.Jobs().RecordAttempt(ctx, "a", 1)).To(Succeed())
			Expect(s.Jobs().RecordPreemption(ctx, "a", 1)).To(Succeed())

			mid, err := s.Jobs().Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(mid.State).To(Equal(models.JobStateQueued))

			Expect(s.Jobs().RecordAttempt(ctx, "a", 2)).To(Succeed())
			Expect(s.Jobs().UpdateState(ctx, "a", models.JobStateCompleted, "done", "")).To(Succeed())

			// Assert
			got, err := s.Jobs().Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.State).To(Equal(models.JobStateCompleted))
			Expect(got.Result).To(Equal("done"))
			Expect(got.Attempts).To(Equal(2))
			Expect(got.Preemptions).To(Equal(1))

			events, err := s.Jobs().Events(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(3))
			Expect(events[0].Kind).To(Equal("dispatched"))
			Expect(events[1].Kind).To(Equal("preempted"))
			Expect(events[2].Kind).To(Equal("dispatched"))
			Expect(events[2].Attempt).To(Equal(2))
		})

		// Given a finished job
		// When another transition is attempted
		// Then it should be refused with JobFinishedError
		It("should not leave a terminal state", func() {
			// Arrange
			Expect(s.Jobs().UpdateState(ctx, "a", models.JobStateCancelled, "", "cancelled")).To(Succeed())

			// Act
			err := s.Jobs().UpdateState(ctx, "a", models.JobStateCompleted, "late", "")

			// Assert
			Expect(srvErrors.IsJobFinishedError(err)).To(BeTrue())
			got, err := s.Jobs().Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.State).To(Equal(models.JobStateCancelled))
			Expect(got.Result).To(BeEmpty())
		})

		It("should return ResourceNotFoundError when updating a missing job", func() {
			err := s.Jobs().UpdateState(ctx, "missing", models.JobStateFailed, "", "x")
			Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
		})
	})

	Context("FailUnfinished", func() {
		// Given jobs left queued and running by a previous process
		// When the journal is recovered
		// Then only the unfinished jobs should be failed
		It("should fail only non-terminal jobs", func() {
			// Arrange
			Expect(s.Jobs().Create(ctx, newJob("q", "sleep", "low", models.JobStateQueued, time.Time{}))).To(Succeed())
			Expect(s.Jobs().Create(ctx, newJob("r", "sleep", "low", models.JobStateRunning, time.Time{}))).To(Succeed())
			Expect(s.Jobs().Create(ctx, newJob("c", "sleep", "low", models.JobStateCompleted, time.Time{}))).To(Succeed())

			// Act
			n, err := s.Jobs().FailUnfinished(ctx, "restarted")

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))

			failed, err := s.Jobs().Count(ctx, store.ByStates(models.JobStateFailed))
			Expect(err).NotTo(HaveOccurred())
			Expect(failed).To(Equal(2))

			c, err := s.Jobs().Get(ctx, "c")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.State).To(Equal(models.JobStateCompleted))
		})
	})

	Context("List and Count", func() {
		BeforeEach(func() {
			base := time.Now().UTC().Add(-time.Hour)
			specs := []struct {
				kind     string
				priority string
				state    models.JobState
			}{
				{"sleep", "low", models.JobStateQueued},
				{"sleep", "high", models.JobStateCompleted},
				{"checksum", "higher", models.JobStateRunning},
				{"checksum", "normal", models.JobStateFailed},
				{"fail", "below_low", models.JobStateCompleted},
			}
			for i, sp := range specs {
				id := fmt.Sprintf("job-%d", i)
				job := newJob(id, sp.kind, sp.priority, sp.state, base.Add(time.Duration(i)*time.Minute))
				Expect(s.Jobs().Create(ctx, job)).To(Succeed())
			}
		})

		It("should list newest first with the default sort", func() {
			jobs, err := s.Jobs().List(ctx, store.WithDefaultSort())
			Expect(err).NotTo(HaveOccurred())
			Expect(jobs).To(HaveLen(5))
			Expect(jobs[0].ID).To(Equal("job-4"))
			Expect(jobs[4].ID).To(Equal("job-0"))
		})

		It("should filter by state, kind and priority", func() {
			jobs, err := s.Jobs().List(ctx, store.ByStates(models.JobStateCompleted), store.WithDefaultSort())
			Expect(err).NotTo(HaveOccurred())
			Expect(jobs).To(HaveLen(2))

			jobs, err = s.Jobs().List(ctx, store.ByKinds("checksum"), store.ByPriorities("higher"))
			Expect(err).NotTo(HaveOccurred())
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].ID).To(Equal("job-2"))

			count, err := s.Jobs().Count(ctx, store.ByKinds("sleep", "fail"))
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(3))
		})

		It("should sort by priority level rather than name", func() {
			jobs, err := s.Jobs().List(ctx, store.WithSort([]store.SortParam{{Field: "priority", Desc: true}}))
			Expect(err).NotTo(HaveOccurred())

			var priorities []string
			for _, j := range jobs {
				priorities = append(priorities, j.Priority)
			}
			Expect(priorities).To(Equal([]string{"higher", "high", "normal", "low", "below_low"}))
		})

		It("should paginate", func() {
			page, err := s.Jobs().List(ctx, store.WithDefaultSort(), store.WithLimit(2), store.WithOffset(2))
			Expect(err).NotTo(HaveOccurred())
			Expect(page).To(HaveLen(2))
			Expect(page[0].ID).To(Equal("job-2"))
			Expect(page[1].ID).To(Equal("job-1"))
		})

		It("should return an empty slice when nothing matches", func() {
			jobs, err := s.Jobs().List(ctx, store.ByKinds("unknown"))
			Expect(err).NotTo(HaveOccurred())
			Expect(jobs).NotTo(BeNil())
			Expect(jobs).To(BeEmpty())
		})
	})
})
