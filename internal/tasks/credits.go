package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/selecta/internal/models"
	"github.com/desertthunder/selecta/internal/repositories"
	"github.com/desertthunder/selecta/internal/shared"
)

// CreditsFetcher scrapes engineer credits from a track page. An error means the page
// could not be read, as opposed to a page that lists no credits.
type CreditsFetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]models.Credit, error)
}

// CreditsResult counts what a [CreditsJob.Run] call wrote.
type CreditsResult struct {
	Tracks      int // tracks visited
	WithCredits int
	Credits     int // new track credits
	Failed      int // pages that could not be fetched, left for a later run
}

// CreditsJob drips through stored tracks that have not had their credits scraped.
type CreditsJob struct {
	db       *sql.DB
	scraper  CreditsFetcher
	progress chan<- ProgressUpdate
	logger   *log.Logger
	now      func() time.Time
}

// CreditsJobOpts configures a [CreditsJob].
type CreditsJobOpts struct {
	DB       *sql.DB
	Scraper  CreditsFetcher
	Progress chan<- ProgressUpdate
	Logger   *log.Logger
	Now      func() time.Time
}

// NewCreditsJob creates a CreditsJob.
func NewCreditsJob(opts CreditsJobOpts) *CreditsJob {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &CreditsJob{
		db:       opts.DB,
		scraper:  opts.Scraper,
		progress: opts.Progress,
		logger:   shared.WithLogger(opts.Logger, "component", "credits"),
		now:      opts.Now,
	}
}

// Run scrapes up to batchSize tracks. A track is stamped as checked once its page was read,
// even when it lists no credits. Tracks whose page could not be fetched stay pending.
func (j *CreditsJob) Run(ctx context.Context, batchSize int) (CreditsResult, error) {
	var result CreditsResult
	if batchSize <= 0 {
		batchSize = shared.DefaultConfig().Scheduler.CreditsBatchSize
	}

	pending, err := repositories.NewTrackRepository(j.db).ListMissingCredits(ctx, batchSize)
	if err != nil {
		return result, fmt.Errorf("list tracks missing credits: %w", err)
	}

	for i, track := range pending {
		credits, err := j.scraper.Fetch(ctx, track.MusicLink)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			j.logger.Warn("credits page unavailable, will retry", "track", track.ExternalID, "url", track.MusicLink, "error", err)
			sendProgress(j.progress, creditsUpdate(i+1, len(pending), track, 0))
			continue
		}

		added := 0
		err = repositories.InTx(ctx, j.db, func(tx *sql.Tx) error {
			added = 0
			repo := repositories.NewCreditRepository(tx)
			for _, c := range credits {
				engineer, err := repo.UpsertEngineer(ctx, c.Name, c.Slug)
				if err != nil {
					return err
				}
				ok, err := repo.AddCredit(ctx, track.ID, engineer.ID, c.Role)
				if err != nil {
					return err
				}
				if ok {
					added++
				}
			}
			return repositories.NewTrackRepository(tx).MarkCreditsChecked(ctx, track.ID, j.now())
		})
		if err != nil {
			return result, fmt.Errorf("save credits for track %d: %w", track.ID, err)
		}

		result.Tracks++
		result.Credits += added
		if len(credits) > 0 {
			result.WithCredits++
		}
		j.logger.Debug("credits scraped", "track", track.ExternalID, "found", len(credits), "added", added)
		sendProgress(j.progress, creditsUpdate(i+1, len(pending), track, len(credits)))
	}

	j.logger.Info("credits batch complete", "tracks", result.Tracks, "with_credits", result.WithCredits, "credits", result.Credits, "failed", result.Failed)
	return result, nil
}
