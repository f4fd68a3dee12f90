package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	v1 "github.com/kubev2v/prio-scheduler/api/v1"
	"github.com/kubev2v/prio-scheduler/internal/config"
	"github.com/kubev2v/prio-scheduler/internal/handlers"
	"github.com/kubev2v/prio-scheduler/internal/metrics"
	"github.com/kubev2v/prio-scheduler/internal/server"
	"github.com/kubev2v/prio-scheduler/internal/services"
	"github.com/kubev2v/prio-scheduler/internal/store"
	"github.com/kubev2v/prio-scheduler/internal/store/migrations"
	"github.com/kubev2v/prio-scheduler/pkg/scheduler"
)

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the job API backed by the scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := setAllConfig(v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := loadConfiguration(v)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogFormat, cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	defaults := config.NewConfigurationWithDefaults()
	flags := cmd.Flags()
	flags.String("server-mode", defaults.Server.ServerMode, "Server mode: dev or prod")
	flags.Int("http-port", defaults.Server.HTTPPort, "HTTP listen port")
	flags.String("default-priority", defaults.Scheduler.DefaultPriority, "Priority of jobs that name none")
	flags.Duration("shutdown-timeout", defaults.Scheduler.ShutdownTimeout, "Grace period for in-flight requests")
	flags.String("data-folder", "", "Folder for the job journal (in memory when empty)")
	flags.Bool("auth-enabled", false, "Require bearer tokens on /api/v1")
	flags.String("auth-secret-file", "", "File holding the HS256 token secret")
	return cmd
}

func serve(ctx context.Context, cfg *config.Configuration) error {
	log := zap.S().Named("prioschedd")
	log.Infow("starting", "config", cfg.DebugMap())

	db, err := store.NewDBInFolder(cfg.Store.DataFolder)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := migrations.Run(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	st := store.NewStore(db)
	defer func() {
		if err := st.Close(); err != nil {
			log.Warnw("failed to close store", "error", err)
		}
	}()

	var opts []server.Option
	if cfg.Auth.Enabled {
		auth, err := server.NewAuthenticatorFromFile(cfg.Auth.SecretFile)
		if err != nil {
			return err
		}
		opts = append(opts, server.WithAuthenticator(auth))
	}

	observer := metrics.NewObserver()
	journal := services.NewJournal(st)
	defer journal.Close()

	sched := scheduler.NewScheduler(
		scheduler.WithObserver(observer),
		scheduler.WithObserver(journal),
	)
	defer sched.Close()

	jobSrv := services.NewJobService(sched, st, journal, services.NewBuiltinRegistry(), cfg.DefaultPriority())
	if err := jobSrv.Recover(ctx); err != nil {
		return err
	}

	h := handlers.New(jobSrv)
	opts = append(opts, server.WithMetrics(observer.Handler()))
	srv, err := server.NewServer(cfg, func(router *gin.RouterGroup) {
		v1.RegisterHandlers(router, h)
	}, opts...)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// deferred: scheduler, then journal, then store
	return nil
}
