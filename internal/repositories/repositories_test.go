package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/selecta/internal/models"
	"github.com/desertthunder/selecta/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func newTrack(externalID, title string, format models.Format, now time.Time) *models.Track {
	return models.NewTrackFromDiscovered(models.DiscoveredTrack{
		ExternalID:  externalID,
		Title:       title,
		Artist:      "Artist",
		Album:       "Album",
		Format:      format,
		ReleaseDate: time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC),
		MusicLink:   "https://music.apple.com/us/song/" + externalID,
		Metadata: models.TrackMetadata{
			Genres:     []string{"Rock"},
			ArtworkURL: "https://example.com/300x300.jpg",
			DurationMS: 241000,
		},
	}, now)
}

func TestTrackRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	t.Run("Create and GetByExternalID", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))
		track := newTrack("1001", "Song", models.FormatDolbyAtmos, now)

		if err := repo.Create(ctx, track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}
		if track.ID == 0 {
			t.Fatal("track ID should be set after creation")
		}

		got, err := repo.GetByExternalID(ctx, "1001")
		if err != nil {
			t.Fatalf("failed to get track: %v", err)
		}
		if got.Title != "Song" || got.Format != models.FormatDolbyAtmos {
			t.Errorf("unexpected track %+v", got)
		}
		if got.Metadata.DurationMS != 241000 || len(got.Metadata.Genres) != 1 {
			t.Errorf("metadata not round-tripped: %+v", got.Metadata)
		}
		if !got.DiscoveredAt.Equal(now) {
			t.Errorf("expected discovered_at %v, got %v", now, got.DiscoveredAt)
		}
	})

	t.Run("GetByExternalID not found", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))
		if _, err := repo.GetByExternalID(ctx, "missing"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("duplicate external id rejected", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))
		if err := repo.Create(ctx, newTrack("1", "A", models.FormatDolbyAtmos, now)); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if err := repo.Create(ctx, newTrack("1", "B", models.FormatDolbyAtmos, now)); err == nil {
			t.Error("expected unique constraint error")
		}
	})

	t.Run("UpdateCatalog leaves community fields", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTrackRepository(db)
		track := newTrack("2002", "Song", models.FormatSpatialAudio, now)
		if err := repo.Create(ctx, track); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		if _, err := db.Exec("UPDATE tracks SET avg_immersiveness = 8.5, flagged = 1, review_summary = 'wide' WHERE id = ?", track.ID); err != nil {
			t.Fatalf("failed to seed community fields: %v", err)
		}

		track.Title = "Song (Live)"
		track.UpdatedAt = now.Add(time.Hour)
		if err := repo.UpdateCatalog(ctx, track); err != nil {
			t.Fatalf("update failed: %v", err)
		}

		got, err := repo.Get(ctx, track.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.Title != "Song (Live)" {
			t.Errorf("expected updated title, got %s", got.Title)
		}
		if got.AvgImmersiveness == nil || *got.AvgImmersiveness != 8.5 || !got.Flagged || got.ReviewSummary != "wide" {
			t.Errorf("community fields changed: %+v", got)
		}
		if !got.DiscoveredAt.Equal(now) {
			t.Errorf("discovered_at changed to %v", got.DiscoveredAt)
		}
	})

	t.Run("UpdateCatalog missing row", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))
		track := newTrack("x", "Song", models.FormatStereo, now)
		track.ID = 999
		if err := repo.UpdateCatalog(ctx, track); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("ListByFormat and MarkUpgraded", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))
		for _, tr := range []*models.Track{
			newTrack("s1", "One", models.FormatStereo, now),
			newTrack("s2", "Two", models.FormatStereo, now),
			newTrack("a1", "Three", models.FormatDolbyAtmos, now),
		} {
			if err := repo.Create(ctx, tr); err != nil {
				t.Fatalf("create failed: %v", err)
			}
		}

		stereo, err := repo.ListByFormat(ctx, models.FormatStereo, 0, 10)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(stereo) != 2 {
			t.Fatalf("expected 2 stereo tracks, got %d", len(stereo))
		}

		page, err := repo.ListByFormat(ctx, models.FormatStereo, stereo[0].ID, 10)
		if err != nil || len(page) != 1 || page[0].ExternalID != "s2" {
			t.Fatalf("keyset page wrong: %v %v", page, err)
		}

		detected := now.Add(24 * time.Hour)
		if err := repo.MarkUpgraded(ctx, stereo[0].ID, models.FormatDolbyAtmos, detected); err != nil {
			t.Fatalf("mark upgraded failed: %v", err)
		}

		got, _ := repo.Get(ctx, stereo[0].ID)
		if got.Format != models.FormatDolbyAtmos {
			t.Errorf("expected Dolby Atmos, got %s", got.Format)
		}
		if got.AtmosReleaseDate == nil || !got.AtmosReleaseDate.Equal(detected) {
			t.Errorf("expected atmos release date %v, got %v", detected, got.AtmosReleaseDate)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))
		for i, tr := range []*models.Track{
			newTrack("l1", "Old", models.FormatStereo, now),
			newTrack("l2", "Mid", models.FormatDolbyAtmos, now.Add(time.Hour)),
			newTrack("l3", "New", models.FormatDolbyAtmos, now.Add(2*time.Hour)),
		} {
			if err := repo.Create(ctx, tr); err != nil {
				t.Fatalf("create %d failed: %v", i, err)
			}
		}

		all, err := repo.List(ctx, "", 10)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(all) != 3 || all[0].ExternalID != "l3" {
			t.Errorf("expected newest first, got %d tracks", len(all))
		}

		atmos, err := repo.List(ctx, models.FormatDolbyAtmos, 1)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(atmos) != 1 || atmos[0].ExternalID != "l3" {
			t.Errorf("expected limited atmos list, got %v", atmos)
		}
	})

	t.Run("ListMissingCredits and MarkCreditsChecked", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))
		withLink := newTrack("c1", "Linked", models.FormatDolbyAtmos, now)
		noLink := newTrack("c2", "Unlinked", models.FormatDolbyAtmos, now)
		noLink.MusicLink = ""
		for _, tr := range []*models.Track{withLink, noLink} {
			if err := repo.Create(ctx, tr); err != nil {
				t.Fatalf("create failed: %v", err)
			}
		}

		pending, err := repo.ListMissingCredits(ctx, 5)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(pending) != 1 || pending[0].ExternalID != "c1" {
			t.Fatalf("expected only the linked track, got %v", pending)
		}

		if err := repo.MarkCreditsChecked(ctx, withLink.ID, now); err != nil {
			t.Fatalf("mark failed: %v", err)
		}
		pending, _ = repo.ListMissingCredits(ctx, 5)
		if len(pending) != 0 {
			t.Errorf("expected no pending tracks, got %d", len(pending))
		}
	})

	t.Run("TitleArtistKeys and Stats", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))
		old := newTrack("o1", "Old  Song", models.FormatStereo, now.AddDate(0, -2, 0))
		fresh := newTrack("f1", "Fresh", models.FormatDolbyAtmos, now)
		for _, tr := range []*models.Track{old, fresh} {
			if err := repo.Create(ctx, tr); err != nil {
				t.Fatalf("create failed: %v", err)
			}
		}

		keys, err := repo.TitleArtistKeys(ctx)
		if err != nil {
			t.Fatalf("keys failed: %v", err)
		}
		if _, ok := keys["old song|artist"]; !ok {
			t.Errorf("expected normalized key, got %v", keys)
		}

		stats, err := repo.Stats(ctx, now.AddDate(0, 0, -30))
		if err != nil {
			t.Fatalf("stats failed: %v", err)
		}
		if stats.Total != 2 || stats.ByFormat[models.FormatDolbyAtmos] != 1 || stats.Recent != 1 {
			t.Errorf("unexpected stats %+v", stats)
		}
	})
}

func TestRegionRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Replace is wholesale", func(t *testing.T) {
		db := setupTestDB(t)
		track := newTrack("r1", "Song", models.FormatDolbyAtmos, now)
		if err := NewTrackRepository(db).Create(ctx, track); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		repo := NewRegionRepository(db)
		first := []models.RegionRecord{
			{Storefront: "us", Available: true, Format: models.FormatDolbyAtmos},
			{Storefront: "gb", Available: true, Format: models.FormatDolbyAtmos},
			{Storefront: "jp", Available: false, Format: models.FormatStereo},
		}
		if err := repo.Replace(ctx, track.ID, first); err != nil {
			t.Fatalf("replace failed: %v", err)
		}

		second := []models.RegionRecord{{Storefront: "de", Available: true, Format: models.FormatSpatialAudio}}
		if err := repo.Replace(ctx, track.ID, second); err != nil {
			t.Fatalf("second replace failed: %v", err)
		}

		got, err := repo.ListByTrack(ctx, track.ID)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(got) != 1 || got[0].Storefront != "de" || got[0].Format != models.FormatSpatialAudio {
			t.Errorf("expected only the de record, got %+v", got)
		}
	})

	t.Run("Replace with empty set clears", func(t *testing.T) {
		db := setupTestDB(t)
		track := newTrack("r2", "Song", models.FormatDolbyAtmos, now)
		if err := NewTrackRepository(db).Create(ctx, track); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		repo := NewRegionRepository(db)
		_ = repo.Replace(ctx, track.ID, []models.RegionRecord{{Storefront: "us", Available: true, Format: models.FormatDolbyAtmos}})

		if err := repo.Replace(ctx, track.ID, []models.RegionRecord{}); err != nil {
			t.Fatalf("replace failed: %v", err)
		}
		got, _ := repo.ListByTrack(ctx, track.ID)
		if len(got) != 0 {
			t.Errorf("expected no records, got %+v", got)
		}
	})
}

func TestCreditRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	track := newTrack("cr1", "Song", models.FormatDolbyAtmos, time.Now().UTC())
	if err := NewTrackRepository(db).Create(ctx, track); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	repo := NewCreditRepository(db)

	t.Run("UpsertEngineer is idempotent", func(t *testing.T) {
		a, err := repo.UpsertEngineer(ctx, "Steven Wilson", "steven-wilson")
		if err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		b, err := repo.UpsertEngineer(ctx, "Steven Wilson", "steven-wilson")
		if err != nil {
			t.Fatalf("second upsert failed: %v", err)
		}
		if a.ID != b.ID {
			t.Errorf("expected same engineer id, got %d and %d", a.ID, b.ID)
		}
		if n, _ := repo.CountEngineers(ctx); n != 1 {
			t.Errorf("expected 1 engineer, got %d", n)
		}
	})

	t.Run("AddCredit ignores duplicates", func(t *testing.T) {
		e, _ := repo.UpsertEngineer(ctx, "Giles Martin", "giles-martin")

		added, err := repo.AddCredit(ctx, track.ID, e.ID, "Immersive Mix Engineer")
		if err != nil || !added {
			t.Fatalf("expected credit added, got %v %v", added, err)
		}
		added, err = repo.AddCredit(ctx, track.ID, e.ID, "Immersive Mix Engineer")
		if err != nil || added {
			t.Fatalf("expected duplicate ignored, got %v %v", added, err)
		}
		if _, err := repo.AddCredit(ctx, track.ID, e.ID, "Mastering Engineer"); err != nil {
			t.Fatalf("second role failed: %v", err)
		}

		credits, err := repo.ListByTrack(ctx, track.ID)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(credits) != 2 || credits[0].Engineer != "Giles Martin" {
			t.Errorf("unexpected credits %+v", credits)
		}
	})

	t.Run("UpsertEngineer requires name", func(t *testing.T) {
		if _, err := repo.UpsertEngineer(ctx, "", ""); err == nil {
			t.Error("expected error for empty name")
		}
	})
}

func TestJobRunRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Start and Finish", func(t *testing.T) {
		repo := NewJobRunRepository(setupTestDB(t))

		run, err := repo.Start(ctx, "discovery", models.TriggerManual)
		if err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if run.ID == "" || run.Status != models.JobRunning {
			t.Fatalf("unexpected run %+v", run)
		}

		if err := repo.Finish(ctx, run, models.JobOutcome{Added: 3, Updated: 2}, nil); err != nil {
			t.Fatalf("finish failed: %v", err)
		}

		got, err := repo.Get(ctx, run.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.Status != models.JobSucceeded || got.Outcome.Added != 3 || got.FinishedAt == nil {
			t.Errorf("unexpected stored run %+v", got)
		}
	})

	t.Run("Finish with error", func(t *testing.T) {
		repo := NewJobRunRepository(setupTestDB(t))
		run, _ := repo.Start(ctx, "credits", models.TriggerSchedule)

		if err := repo.Finish(ctx, run, models.JobOutcome{}, errors.New("boom")); err != nil {
			t.Fatalf("finish failed: %v", err)
		}
		got, _ := repo.Get(ctx, run.ID)
		if got.Status != models.JobFailed || got.Error != "boom" {
			t.Errorf("unexpected stored run %+v", got)
		}
	})

	t.Run("Recent newest first", func(t *testing.T) {
		repo := NewJobRunRepository(setupTestDB(t))
		base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		for i, job := range []string{"discovery", "upgrade", "credits"} {
			at := base.Add(time.Duration(i) * time.Minute)
			repo.now = func() time.Time { return at }
			if _, err := repo.Start(ctx, job, models.TriggerSchedule); err != nil {
				t.Fatalf("start failed: %v", err)
			}
		}

		runs, err := repo.Recent(ctx, 2)
		if err != nil {
			t.Fatalf("recent failed: %v", err)
		}
		if len(runs) != 2 || runs[0].Job != "credits" || runs[1].Job != "upgrade" {
			t.Errorf("unexpected order: %v", runs)
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		repo := NewJobRunRepository(setupTestDB(t))
		if _, err := repo.Get(ctx, "nope"); !errors.Is(err, shared.ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound, got %v", err)
		}
	})
}

func TestInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("rolls back on error", func(t *testing.T) {
		db := setupTestDB(t)
		err := InTx(ctx, db, func(tx *sql.Tx) error {
			if err := NewTrackRepository(tx).Create(ctx, newTrack("tx1", "Song", models.FormatStereo, time.Now())); err != nil {
				return err
			}
			return errors.New("abort")
		})
		if err == nil {
			t.Fatal("expected error")
		}

		if _, err := NewTrackRepository(db).GetByExternalID(ctx, "tx1"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("track should have been rolled back, got %v", err)
		}
	})

	t.Run("commits on success", func(t *testing.T) {
		db := setupTestDB(t)
		err := InTx(ctx, db, func(tx *sql.Tx) error {
			return NewTrackRepository(tx).Create(ctx, newTrack("tx2", "Song", models.FormatStereo, time.Now()))
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := NewTrackRepository(db).GetByExternalID(ctx, "tx2"); err != nil {
			t.Errorf("expected committed track: %v", err)
		}
	})
}
