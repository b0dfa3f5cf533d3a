package tasks

import (
	"context"
	"time"

	"github.com/desertthunder/selecta/internal/models"
	"github.com/desertthunder/selecta/internal/shared"
)

// Names of the default jobs.
const (
	JobDiscovery = "discovery"
	JobUpgrade   = "silent-upgrade"
	JobCredits   = "credits"
)

// DiscoveryJob crawls the catalog in storefront and syncs what it finds. progress may be nil.
func DiscoveryJob(agg *Aggregator, engine *SyncEngine, storefront string, interval time.Duration, progress chan<- ProgressUpdate) Job {
	return Job{
		Name:     JobDiscovery,
		Interval: interval,
		Run: func(ctx context.Context) (models.JobOutcome, error) {
			tracks := agg.DiscoverAll(ctx, storefront, progress)
			result, err := engine.Sync(ctx, tracks)
			return models.JobOutcome{Added: result.Added, Updated: result.Updated, Processed: len(tracks)}, err
		},
	}
}

// UpgradeJob re-checks Stereo tracks for a silent format upgrade.
func UpgradeJob(engine *SyncEngine, interval time.Duration) Job {
	return Job{
		Name:     JobUpgrade,
		Interval: interval,
		Run: func(ctx context.Context) (models.JobOutcome, error) {
			result, err := engine.CheckSilentUpgrades(ctx)
			return models.JobOutcome{Updated: result.Upgraded, Processed: result.Checked}, err
		},
	}
}

// CreditsBatchJob scrapes credits for batchSize tracks per run.
func CreditsBatchJob(credits *CreditsJob, batchSize int, interval time.Duration) Job {
	return Job{
		Name:     JobCredits,
		Interval: interval,
		Run: func(ctx context.Context) (models.JobOutcome, error) {
			result, err := credits.Run(ctx, batchSize)
			return models.JobOutcome{Added: result.Credits, Updated: result.WithCredits, Processed: result.Tracks}, err
		},
	}
}

// DefaultJobs builds the discovery, upgrade and credits jobs from cfg.
func DefaultJobs(cfg *shared.Config, agg *Aggregator, engine *SyncEngine, credits *CreditsJob) []Job {
	return []Job{
		DiscoveryJob(agg, engine, cfg.Catalog.Storefront, cfg.Scheduler.DiscoveryInterval, nil),
		UpgradeJob(engine, cfg.Scheduler.UpgradeInterval),
		CreditsBatchJob(credits, cfg.Scheduler.CreditsBatchSize, cfg.Scheduler.CreditsInterval),
	}
}
