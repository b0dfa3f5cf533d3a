package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/selecta/internal/models"
	"github.com/desertthunder/selecta/internal/repositories"
	"github.com/desertthunder/selecta/internal/services"
	"github.com/desertthunder/selecta/internal/shared"
	"github.com/samber/lo"
)

// SyncResult counts what a [SyncEngine.Sync] call committed.
type SyncResult struct {
	Added   int
	Updated int
	Skipped int
}

// UpgradeResult counts what a [SyncEngine.CheckSilentUpgrades] call did.
type UpgradeResult struct {
	Checked  int
	Upgraded int
	Failed   int
}

// SyncEngine merges discovered tracks into the store and re-checks Stereo tracks for upgrades.
type SyncEngine struct {
	db               *sql.DB
	catalog          TrackFetcher
	storefront       string
	batchSize        int
	upgradeBatchSize int
	progress         chan<- ProgressUpdate
	logger           *log.Logger
	now              func() time.Time
}

// SyncOpts configures a [SyncEngine]. Catalog is only needed for silent upgrade checks.
type SyncOpts struct {
	DB               *sql.DB
	Catalog          TrackFetcher
	Storefront       string
	BatchSize        int
	UpgradeBatchSize int
	Progress         chan<- ProgressUpdate
	Logger           *log.Logger
	Now              func() time.Time
}

// NewSyncEngine creates a SyncEngine, filling unset values from [shared.DefaultConfig].
func NewSyncEngine(opts SyncOpts) *SyncEngine {
	defaults := shared.DefaultConfig()
	if opts.Storefront == "" {
		opts.Storefront = defaults.Catalog.Storefront
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaults.Scheduler.SyncBatchSize
	}
	if opts.UpgradeBatchSize <= 0 {
		opts.UpgradeBatchSize = defaults.Scheduler.UpgradeBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &SyncEngine{
		db:               opts.DB,
		catalog:          opts.Catalog,
		storefront:       opts.Storefront,
		batchSize:        opts.BatchSize,
		upgradeBatchSize: opts.UpgradeBatchSize,
		progress:         opts.Progress,
		logger:           shared.WithLogger(opts.Logger, "component", "sync"),
		now:              opts.Now,
	}
}

// Sync upserts tracks by catalog id, one transaction per batch.
//
// Updates rewrite catalog-owned columns only. Non-nil Regions replace the stored availability.
// Tracks without a catalog id are skipped. On a storage error the failing batch is rolled back
// and the counts of the batches already committed are returned with the error.
func (e *SyncEngine) Sync(ctx context.Context, tracks []models.DiscoveredTrack) (SyncResult, error) {
	var result SyncResult
	batches := lo.Chunk(tracks, e.batchSize)

	for i, batch := range batches {
		var b SyncResult
		err := repositories.InTx(ctx, e.db, func(tx *sql.Tx) error {
			var err error
			b, err = e.syncBatch(ctx, tx, batch)
			return err
		})
		if err != nil {
			e.logger.Error("sync batch rolled back", "batch", i+1, "of", len(batches), "error", err)
			return result, fmt.Errorf("sync batch %d: %w", i+1, err)
		}

		result.Added += b.Added
		result.Updated += b.Updated
		result.Skipped += b.Skipped
		sendProgress(e.progress, syncBatchUpdate(i+1, len(batches), result))
	}

	e.logger.Info("sync complete", "added", result.Added, "updated", result.Updated, "skipped", result.Skipped)
	return result, nil
}

func (e *SyncEngine) syncBatch(ctx context.Context, tx *sql.Tx, batch []models.DiscoveredTrack) (SyncResult, error) {
	var result SyncResult
	tracks := repositories.NewTrackRepository(tx)
	regions := repositories.NewRegionRepository(tx)
	now := e.now().UTC()

	for _, d := range batch {
		if d.ExternalID == "" {
			e.logger.Warn("skipping track without catalog id", "title", d.Title, "artist", d.Artist)
			result.Skipped++
			continue
		}

		track, err := tracks.GetByExternalID(ctx, d.ExternalID)
		switch {
		case errors.Is(err, shared.ErrTrackNotFound):
			track = models.NewTrackFromDiscovered(d, now)
			if err := tracks.Create(ctx, track); err != nil {
				return result, fmt.Errorf("insert %s: %w", d.ExternalID, err)
			}
			result.Added++
		case err != nil:
			return result, fmt.Errorf("lookup %s: %w", d.ExternalID, err)
		default:
			track.ApplyCatalog(d, now)
			if err := tracks.UpdateCatalog(ctx, track); err != nil {
				return result, fmt.Errorf("update %s: %w", d.ExternalID, err)
			}
			result.Updated++
		}

		if d.Regions != nil {
			if err := regions.Replace(ctx, track.ID, d.Regions); err != nil {
				return result, fmt.Errorf("regions %s: %w", d.ExternalID, err)
			}
		}
	}
	return result, nil
}

// CheckSilentUpgrades re-fetches Stereo tracks and records those that became Spatial Audio or Dolby Atmos.
//
// The upgrade is stamped with the detection time since the catalog does not expose when it happened.
// Tracks are paged by id, one transaction per page; fetch and update failures are counted and skipped.
func (e *SyncEngine) CheckSilentUpgrades(ctx context.Context) (UpgradeResult, error) {
	var result UpgradeResult
	if e.catalog == nil {
		return result, fmt.Errorf("%w: catalog client not initialized", shared.ErrServiceUnavailable)
	}

	reader := repositories.NewTrackRepository(e.db)
	var afterID int64

	for {
		page, err := reader.ListByFormat(ctx, models.FormatStereo, afterID, e.upgradeBatchSize)
		if err != nil {
			return result, fmt.Errorf("list stereo tracks: %w", err)
		}
		if len(page) == 0 {
			break
		}
		afterID = page[len(page)-1].ID
		result.Checked += len(page)

		ids := lo.Map(page, func(t *models.Track, _ int) string { return t.ExternalID })
		raw, err := e.catalog.FetchTracksByIDs(ctx, e.storefront, ids)
		if err != nil {
			e.logger.Warn("upgrade fetch failed", "tracks", len(page), "error", err)
			result.Failed += len(page)
			continue
		}
		byID := lo.SliceToMap(raw, func(r services.RawTrack) (string, services.RawTrack) {
			return r.ID(), r
		})

		var upgraded, failed int
		err = repositories.InTx(ctx, e.db, func(tx *sql.Tx) error {
			upgraded, failed = 0, 0
			tracks := repositories.NewTrackRepository(tx)
			detectedAt := e.now().UTC()

			for _, t := range page {
				r, ok := byID[t.ExternalID]
				if !ok {
					continue
				}
				support := services.ClassifySpatialSupport(r)
				format := models.FormatFor(support.HasSpatial, support.HasAtmos)
				if !format.IsImmersive() {
					continue
				}

				if err := tracks.MarkUpgraded(ctx, t.ID, format, detectedAt); err != nil {
					e.logger.Warn("failed to record upgrade", "track", t.ExternalID, "error", err)
					failed++
					continue
				}
				e.logger.Info("silent upgrade detected", "track", t.ExternalID, "title", t.Title, "format", format)
				upgraded++
			}
			return nil
		})
		if err != nil {
			return result, fmt.Errorf("commit upgrades: %w", err)
		}

		result.Upgraded += upgraded
		result.Failed += failed
		sendProgress(e.progress, upgradeUpdate(result))
	}

	e.logger.Info("upgrade check complete", "checked", result.Checked, "upgraded", result.Upgraded, "failed", result.Failed)
	return result, nil
}

// ImportLegacy loads a data.json export in a single transaction, skipping entries whose
// normalized title and artist already exist. It returns the number of imported tracks.
func (e *SyncEngine) ImportLegacy(ctx context.Context, entries []models.LegacyTrack) (int, error) {
	imported := 0
	err := repositories.InTx(ctx, e.db, func(tx *sql.Tx) error {
		imported = 0
		tracks := repositories.NewTrackRepository(tx)
		keys, err := tracks.TitleArtistKeys(ctx)
		if err != nil {
			return err
		}

		now := e.now().UTC()
		for _, entry := range entries {
			if entry.Title == "" || entry.Artist == "" {
				continue
			}
			key := shared.NormalizeTrackKey(entry.Title, entry.Artist)
			if _, ok := keys[key]; ok {
				continue
			}
			if entry.AppleMusicID != "" {
				if _, err := tracks.GetByExternalID(ctx, entry.AppleMusicID); err == nil {
					continue
				}
			}

			track := legacyTrack(entry, now)
			if err := tracks.Create(ctx, track); err != nil {
				return fmt.Errorf("import %q: %w", entry.Title, err)
			}
			keys[key] = struct{}{}
			imported++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	e.logger.Info("legacy import complete", "entries", len(entries), "imported", imported)
	return imported, nil
}

func legacyTrack(entry models.LegacyTrack, now time.Time) *models.Track {
	format, err := models.ParseFormat(entry.Format)
	if err != nil {
		format = models.FormatDolbyAtmos
	}

	release, ok := services.ParseReleaseDate(entry.ReleaseDate)
	if !ok {
		release = now
	}

	var atmos *time.Time
	if at, ok := services.ParseReleaseDate(entry.AtmosReleaseDate); ok {
		atmos = &at
	} else if format.IsImmersive() {
		atmos = &release
	}

	return &models.Track{
		ExternalID:       entry.AppleMusicID,
		Title:            entry.Title,
		Artist:           entry.Artist,
		Album:            lo.CoalesceOrEmpty(entry.Album, "Unknown"),
		Format:           format,
		Platform:         models.Platform,
		ReleaseDate:      release,
		AtmosReleaseDate: atmos,
		MusicLink:        entry.MusicLink,
		DiscoveredAt:     now,
		UpdatedAt:        now,
	}
}
