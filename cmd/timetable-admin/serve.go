package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/timetable-admin/internal/handler"
	"github.com/noah-isme/timetable-admin/internal/router"
	"github.com/noah-isme/timetable-admin/internal/web"
	"github.com/noah-isme/timetable-admin/pkg/database"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand() *cobra.Command {
	var migrateFirst bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server, mail workers and scheduled jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if migrateFirst {
				if _, err := database.Migrate(ctx, a.db, a.logger); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
			}
			return a.serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	renderer, err := web.NewRenderer()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	pages := web.NewHandler(renderer, a.auth, a.subjects, a.assignments, a.metrics, a.logger).
		WithPageSize(a.cfg.Pagination.DefaultSize)

	engine := router.New(router.Dependencies{
		Config:        a.cfg,
		Logger:        a.logger,
		Metrics:       a.metrics,
		Tokens:        a.auth,
		Pages:         pages,
		Auth:          handler.NewAuthHandler(a.auth),
		Subjects:      handler.NewSubjectHandler(a.subjects),
		Assignments:   handler.NewFacultyAssignmentHandler(a.assignments),
		Observability: handler.NewMetricsHandler(a.metrics, a.gateway),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheduler := cron.New()
	if spec := a.cfg.Auth.PurgeSchedule; spec != "" {
		if _, err := a.auth.SchedulePurge(ctx, scheduler, spec); err != nil {
			return fmt.Errorf("schedule reset purge: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.mailQueue.Start(gctx)
		<-gctx.Done()
		a.mailQueue.Stop()
		return nil
	})

	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})

	g.Go(func() error {
		a.logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", a.cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
