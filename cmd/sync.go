package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/selecta/internal/formatter"
	"github.com/desertthunder/selecta/internal/models"
	"github.com/desertthunder/selecta/internal/repositories"
	"github.com/desertthunder/selecta/internal/shared"
	"github.com/desertthunder/selecta/internal/tasks"
	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"github.com/urfave/cli/v3"
)

// trigger runs job once through a scheduler so the run is recorded like a scheduled one.
// Progress messages are printed while it runs when progress is non-nil.
func (r *Runner) trigger(ctx context.Context, e *engine, job tasks.Job, progress chan tasks.ProgressUpdate) (models.JobOutcome, error) {
	scheduler, err := e.scheduler(r.logger, false, job)
	if err != nil {
		return models.JobOutcome{}, err
	}

	if progress == nil {
		return scheduler.Trigger(ctx, job.Name)
	}

	done := make(chan struct{})
	go r.printProgress(progress, done)
	outcome, err := scheduler.Trigger(ctx, job.Name)
	close(progress)
	<-done
	return outcome, err
}

func (r *Runner) progressChannel(quiet bool) chan tasks.ProgressUpdate {
	if quiet {
		return nil
	}
	return make(chan tasks.ProgressUpdate, 64)
}

// Sync runs one discovery pass and merges the results into the database.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}
	if cmd.Bool("no-regions") {
		r.config.Catalog.CheckRegions = false
	}
	storefront := strings.ToLower(lo.CoalesceOrEmpty(cmd.String("storefront"), r.config.Catalog.Storefront))

	db, err := r.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	progress := r.progressChannel(cmd.Bool("quiet"))
	e, err := r.buildEngine(db, true, progress)
	if err != nil {
		return err
	}

	r.logger.Info("starting discovery", "storefront", storefront, "regions", r.config.Catalog.CheckRegions)
	job := tasks.DiscoveryJob(e.aggregator, e.sync, storefront, r.config.Scheduler.DiscoveryInterval, progress)
	outcome, err := r.trigger(ctx, e, job, progress)
	if err != nil {
		return fmt.Errorf("discovery failed after %d added, %d updated: %w", outcome.Added, outcome.Updated, err)
	}

	r.writePlainln("✓ Discovery complete")
	r.writePlain("Discovered: %d\n", outcome.Processed)
	r.writePlain("Added:      %d\n", outcome.Added)
	r.writePlain("Updated:    %d\n", outcome.Updated)
	return nil
}

// Upgrade re-checks Stereo tracks for silent format upgrades once.
func (r *Runner) Upgrade(ctx context.Context, cmd *cli.Command) error {
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

	outcome, err := r.trigger(ctx, e, tasks.UpgradeJob(e.sync, r.config.Scheduler.UpgradeInterval), nil)
	if err != nil {
		return fmt.Errorf("silent upgrade check failed: %w", err)
	}

	r.writePlain("✓ Checked %d Stereo tracks, %d upgraded\n", outcome.Processed, outcome.Updated)
	return nil
}

// Credits scrapes engineer credits for one batch of tracks.
func (r *Runner) Credits(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	batch := int(cmd.Int("batch"))
	if batch <= 0 {
		batch = r.config.Scheduler.CreditsBatchSize
	}

	db, err := r.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	progress := r.progressChannel(false)
	e, err := r.buildEngine(db, false, progress)
	if err != nil {
		return err
	}

	outcome, err := r.trigger(ctx, e, tasks.CreditsBatchJob(e.credits, batch, r.config.Scheduler.CreditsInterval), progress)
	if err != nil {
		return fmt.Errorf("credits scrape failed: %w", err)
	}

	r.writePlain("✓ Scraped %d tracks: %d with credits, %d new credits\n", outcome.Processed, outcome.Updated, outcome.Added)
	return nil
}

// Import loads a legacy data.json file into the database.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path to data.json", shared.ErrMissingArgument)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var entries []models.LegacyTrack
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("%w: failed to parse %s: %v", shared.ErrInvalidArgument, path, err)
	}

	db, err := r.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	e, err := r.buildEngine(db, false, nil)
	if err != nil {
		return err
	}

	imported, err := e.sync.ImportLegacy(ctx, entries)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	r.logger.Info("legacy import finished", "entries", len(entries), "imported", imported)
	r.writePlain("✓ Imported %d of %d tracks from %s\n", imported, len(entries), path)
	return nil
}

// Export writes stored tracks to a file in the requested format.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	var audio models.Format
	if s := cmd.String("audio"); s != "" {
		f, err := models.ParseFormat(s)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		audio = f
	}

	db, err := r.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tracks, err := repositories.NewTrackRepository(db).List(ctx, audio, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	path, err := formatter.WriteExport(tracks, cmd.String("format"), cmd.String("output"))
	if err != nil {
		return err
	}

	r.writePlain("✓ Exported %d tracks to %s\n", len(tracks), path)
	return nil
}
