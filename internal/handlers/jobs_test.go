package handlers_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1 "github.com/kubev2v/prio-scheduler/api/v1"
	"github.com/kubev2v/prio-scheduler/internal/handlers"
	"github.com/kubev2v/prio-scheduler/internal/services"
	"github.com/kubev2v/prio-scheduler/internal/store"
	"github.com/kubev2v/prio-scheduler/internal/store/migrations"
	"github.com/kubev2v/prio-scheduler/pkg/scheduler"
)

var _ = Describe("Job handlers", func() {
	var (
		db      *sql.DB
		journal *services.Journal
		sched   *scheduler.Scheduler
		router  *gin.Engine
	)

	do := func(method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	decode := func(rec *httptest.ResponseRecorder, v any) {
		ExpectWithOffset(1, json.Unmarshal(rec.Body.Bytes(), v)).To(Succeed())
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		ctx := context.Background()

		var err error
		db, err = store.NewDB(":memory:")
		Expect(err).NotTo(HaveOccurred())
		Expect(migrations.Run(ctx, db)).To(Succeed())

		st := store.NewStore(db)
		journal = services.NewJournal(st)
		sched = scheduler.NewScheduler(scheduler.WithObserver(journal))
		svc := services.NewJobService(sched, st, journal, services.NewBuiltinRegistry(), scheduler.Normal)

		router = gin.New()
		v1.RegisterHandlers(router.Group("/api/v1"), handlers.New(svc))
	})

	AfterEach(func() {
		sched.Close()
		journal.Close()
		db.Close()
	})

	Context("POST /jobs", func() {
		It("should accept a job", func() {
			rec := do(http.MethodPost, "/api/v1/jobs", v1.JobRequest{Kind: "sleep", Priority: "high", Input: "1ms"})
			Expect(rec.Code).To(Equal(http.StatusAccepted))

			var job v1.Job
			decode(rec, &job)
			Expect(job.Id).NotTo(BeEmpty())
			Expect(job.Priority).To(Equal("high"))
			Expect(job.State).To(Equal(v1.JobStateQueued))

			Eventually(func() v1.JobState {
				var got v1.Job
				decode(do(http.MethodGet, "/api/v1/jobs/"+job.Id, nil), &got)
				return got.State
			}).Should(Equal(v1.JobStateCompleted))
		})

		DescribeTable("should reject bad requests",
			func(body any) {
				rec := do(http.MethodPost, "/api/v1/jobs", body)
				Expect(rec.Code).To(Equal(http.StatusBadRequest))

				var e v1.Error
				decode(rec, &e)
				Expect(e.Error).NotTo(BeEmpty())
			},
			Entry("missing kind", map[string]string{"priority": "low"}),
			Entry("unknown kind", v1.JobRequest{Kind: "nope"}),
			Entry("unknown priority", v1.JobRequest{Kind: "sleep", Priority: "urgent"}),
			Entry("bad delay", v1.JobRequest{Kind: "sleep", Delay: "soon"}),
		)

		It("should return 503 once the scheduler is closed", func() {
			sched.Close()
			rec := do(http.MethodPost, "/api/v1/jobs", v1.JobRequest{Kind: "sleep"})
			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Context("GET /jobs", func() {
		It("should list with filters and pagination", func() {
			for range 3 {
				Expect(do(http.MethodPost, "/api/v1/jobs", v1.JobRequest{Kind: "fail"}).Code).To(Equal(http.StatusAccepted))
			}

			Eventually(func() int {
				var list v1.JobListResponse
				decode(do(http.MethodGet, "/api/v1/jobs?state=failed", nil), &list)
				return list.Total
			}).Should(Equal(3))

			var page v1.JobListResponse
			decode(do(http.MethodGet, "/api/v1/jobs?kind=fail&pageSize=2&page=2", nil), &page)
			Expect(page.Page).To(Equal(2))
			Expect(page.PageCount).To(Equal(2))
			Expect(page.Jobs).To(HaveLen(1))
		})

		It("should reject an unknown state filter", func() {
			rec := do(http.MethodGet, "/api/v1/jobs?state=sleeping", nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should reject a page whose offset overflows", func() {
			rec := do(http.MethodGet, "/api/v1/jobs?page=9223372036854775807&pageSize=100", nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))

			var apiErr v1.Error
			decode(rec, &apiErr)
			Expect(apiErr.Error).To(ContainSubstring("out of range"))
		})

		It("should return an empty page past the end", func() {
			rec := do(http.MethodGet, "/api/v1/jobs?page=1000000&pageSize=100", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var list v1.JobListResponse
			decode(rec, &list)
			Expect(list.Page).To(Equal(1000000))
			Expect(list.Jobs).To(BeEmpty())
		})
	})

	Context("GET /jobs/:id", func() {
		It("should return 404 for an unknown job", func() {
			Expect(do(http.MethodGet, "/api/v1/jobs/missing", nil).Code).To(Equal(http.StatusNotFound))
			Expect(do(http.MethodGet, "/api/v1/jobs/missing/events", nil).Code).To(Equal(http.StatusNotFound))
		})
	})

	Context("DELETE /jobs/:id", func() {
		It("should cancel a delayed job and refuse a second cancel", func() {
			var job v1.Job
			decode(do(http.MethodPost, "/api/v1/jobs", v1.JobRequest{Kind: "sleep", Delay: "1h"}), &job)
			Expect(job.State).To(Equal(v1.JobStateDelayed))

			rec := do(http.MethodDelete, "/api/v1/jobs/"+job.Id, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			var cancelled v1.Job
			decode(rec, &cancelled)
			Expect(cancelled.State).To(Equal(v1.JobStateCancelled))

			Expect(do(http.MethodDelete, "/api/v1/jobs/"+job.Id, nil).Code).To(Equal(http.StatusConflict))
		})

		It("should return 404 for an unknown job", func() {
			Expect(do(http.MethodDelete, "/api/v1/jobs/missing", nil).Code).To(Equal(http.StatusNotFound))
		})
	})

	Context("GET /scheduler", func() {
		It("should report delayed work and kinds", func() {
			do(http.MethodPost, "/api/v1/jobs", v1.JobRequest{Kind: "sleep", Delay: "1h"})

			var status v1.SchedulerStatus
			decode(do(http.MethodGet, "/api/v1/scheduler", nil), &status)
			Expect(status.Delayed).To(Equal(1))
			Expect(status.Closed).To(BeFalse())
			Expect(status.Kinds).To(ContainElements("sleep", "checksum", "fail"))
			Expect(status.Pending).To(HaveLen(5))
		})
	})
})
