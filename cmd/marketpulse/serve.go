package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/marketpulse/internal/logger"
	"github.com/rewired-gh/marketpulse/internal/models"
	"github.com/rewired-gh/marketpulse/internal/scheduler"
	"github.com/rewired-gh/marketpulse/internal/server"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled alerts, daily reports and weekly learning",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return serve(cmd.Context(), a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	var srv *server.Server
	if a.cfg.Server.Enabled {
		srv = server.New(server.Config{
			Port:    a.cfg.Server.Port,
			Log:     logger.Component("server"),
			Metrics: a.recorder.Handler(),
			Weights: a.monitor,
		})
		a.setSnapshotHook(srv.SetSnapshot)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed: %v", err)
			}
		}()
	}

	var notifier scheduler.Notifier
	if a.telegram != nil {
		notifier = a.telegram
		a.telegram.ListenForCommands(ctx, func(ctx context.Context) *models.Snapshot {
			return a.snapshot(ctx, "command")
		})
	}

	sched := scheduler.New(ctx, logger.Component("scheduler"), a.cfg.Location(), notifier)
	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{a.cfg.Schedule.Alerts, scheduler.JobFunc{JobName: "alerts", Fn: func(ctx context.Context) error {
			_, err := a.alerts(ctx, true)
			return err
		}}},
		{a.cfg.Schedule.Morning, reportJob(a, tagMorning)},
		{a.cfg.Schedule.Evening, reportJob(a, tagEvening)},
		{a.cfg.Schedule.Learn, scheduler.JobFunc{JobName: "learn", Fn: func(ctx context.Context) error {
			_, err := a.learn(ctx, false)
			return err
		}}},
	}
	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			return err
		}
	}

	logger.Info("Starting monitoring service (threshold: %.1f%%, top_n: %d, timezone: %s)",
		a.cfg.Scoring.AlertThreshold, a.cfg.Scoring.TopN, a.cfg.Location())

	// populate the status endpoint before the first scheduled run
	if srv != nil {
		a.snapshot(ctx, "startup")
	}
	sched.Start()

	<-ctx.Done()
	logger.Info("Shutdown signal received, cleaning up...")
	sched.Stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown: %v", err)
		}
	}
	logger.Info("Service stopped")
	return nil
}

func reportJob(a *app, tag string) scheduler.Job {
	return scheduler.JobFunc{JobName: tag + " report", Fn: func(ctx context.Context) error {
		_, err := a.report(ctx, tag)
		return err
	}}
}
