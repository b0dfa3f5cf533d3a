package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/desertthunder/selecta/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve starts the scheduler with the default jobs and blocks until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	db, err := r.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	e, err := r.buildEngine(db, true, nil)
	if err != nil {
		return err
	}

	cfg := r.config
	runOnStart := cfg.Scheduler.RunOnStart || cmd.Bool("run-on-start")
	scheduler, err := e.scheduler(r.logger, runOnStart, tasks.DefaultJobs(cfg, e.aggregator, e.sync, e.credits)...)
	if err != nil {
		return fmt.Errorf("failed to build scheduler: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	r.logger.Info("scheduler started",
		"jobs", scheduler.Jobs(),
		"storefront", cfg.Catalog.Storefront,
		"database", cfg.Database.Path)

	<-ctx.Done()
	r.logger.Info("shutting down, waiting for running jobs")
	scheduler.Stop()
	r.logger.Info("scheduler stopped")
	return nil
}
