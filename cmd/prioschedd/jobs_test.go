package main

import (
	"bytes"
	"context"
	"database/sql"
	"net/http/httptest"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1 "github.com/kubev2v/prio-scheduler/api/v1"
	"github.com/kubev2v/prio-scheduler/internal/config"
	"github.com/kubev2v/prio-scheduler/internal/handlers"
	"github.com/kubev2v/prio-scheduler/internal/server"
	"github.com/kubev2v/prio-scheduler/internal/services"
	"github.com/kubev2v/prio-scheduler/internal/store"
	"github.com/kubev2v/prio-scheduler/internal/store/migrations"
	"github.com/kubev2v/prio-scheduler/pkg/scheduler"
)

var _ = Describe("Jobs commands", func() {
	var (
		db      *sql.DB
		journal *services.Journal
		sched   *scheduler.Scheduler
		ts      *httptest.Server
	)

	run := func(args ...string) (string, error) {
		root := newRootCommand()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs(append(args, "--api-url", ts.URL))
		err := root.Execute()
		return out.String(), err
	}

	BeforeEach(func() {
		noColor := color.NoColor
		color.NoColor = true
		DeferCleanup(func() { color.NoColor = noColor })

		ctx := context.Background()
		var err error
		db, err = store.NewDB(":memory:")
		Expect(err).NotTo(HaveOccurred())
		Expect(migrations.Run(ctx, db)).To(Succeed())

		st := store.NewStore(db)
		journal = services.NewJournal(st)
		sched = scheduler.NewScheduler(scheduler.WithObserver(journal))
		svc := services.NewJobService(sched, st, journal, services.NewBuiltinRegistry(), scheduler.Normal)

		srv, err := server.NewServer(config.NewConfigurationWithDefaults(), func(router *gin.RouterGroup) {
			v1.RegisterHandlers(router, handlers.New(svc))
		})
		Expect(err).NotTo(HaveOccurred())
		ts = httptest.NewServer(srv.Handler())
	})

	AfterEach(func() {
		ts.Close()
		sched.Close()
		journal.Close()
		db.Close()
	})

	It("should submit a job and wait for it", func() {
		out, err := run("jobs", "submit", "--kind", "sleep", "--input", "1ms", "--priority", "high", "--wait")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(MatchRegexp(`sleep\s+high\s+completed\s+1\s+0\s+slept 1ms`))
	})

	It("should list delayed jobs and show the scheduler status", func() {
		_, err := run("jobs", "submit", "--kind", "sleep", "--delay", "1h")
		Expect(err).NotTo(HaveOccurred())

		out, err := run("jobs", "list", "--state", "delayed")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("page 1/1, 1 jobs"))

		out, err = run("jobs", "status")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("delayed:  1"))
		Expect(out).To(ContainSubstring("running:  idle"))
	})

	It("should fail on an unknown job", func() {
		_, err := run("jobs", "cancel", "missing")
		Expect(err).To(MatchError(ContainSubstring(`job "missing" not found`)))
	})
})
