package main

import (
	"context"
	"time"

	"github.com/desertthunder/selecta/internal/models"
	"github.com/desertthunder/selecta/internal/repositories"
	"github.com/desertthunder/selecta/internal/ui"
	"github.com/urfave/cli/v3"
)

// statusJSON is the --json shape of `selecta status`.
type statusJSON struct {
	Database   string                `json:"database"`
	Total      int                   `json:"total"`
	ByFormat   map[models.Format]int `json:"by_format"`
	Recent     int                   `json:"recent"`
	RecentDays int                   `json:"recent_days"`
	WithCredit int                   `json:"with_credits"`
	Engineers  int                   `json:"engineers"`
	Runs       []*models.JobRun      `json:"runs"`
}

// Status prints track counts and the most recent job runs.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	db, err := r.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	days := int(cmd.Int("days"))
	if days <= 0 {
		days = 30
	}

	stats, err := repositories.NewTrackRepository(db).Stats(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		return err
	}
	engineers, err := repositories.NewCreditRepository(db).CountEngineers(ctx)
	if err != nil {
		return err
	}
	runs, err := repositories.NewJobRunRepository(db).Recent(ctx, int(cmd.Int("runs")))
	if err != nil {
		return err
	}

	report := ui.StatusReport{
		Database:   r.config.Database.Path,
		Total:      stats.Total,
		ByFormat:   stats.ByFormat,
		Recent:     stats.Recent,
		RecentDays: days,
		WithCredit: stats.WithCredit,
		Engineers:  engineers,
		Runs:       runs,
	}

	if cmd.Bool("json") {
		return r.writeJSON(statusJSON(report), true)
	}
	return r.writePlain("%s", ui.RenderStatus(report))
}
