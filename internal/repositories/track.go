package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/selecta/internal/models"
	"github.com/desertthunder/selecta/internal/shared"
	"github.com/goccy/go-json"
)

const trackColumns = `
	id, external_id, title, artist, album, format, platform, release_date,
	atmos_release_date, music_link, artwork_url, extra_metadata, discovered_at,
	updated_at, avg_immersiveness, flagged, review_summary, credits_checked_at`

// TrackRepository persists [models.Track] rows.
type TrackRepository struct {
	db DBTX
}

// NewTrackRepository creates a TrackRepository over a database or transaction.
func NewTrackRepository(db DBTX) *TrackRepository {
	return &TrackRepository{db: db}
}

// TrackStats summarizes the tracks table.
type TrackStats struct {
	Total      int
	ByFormat   map[models.Format]int
	Recent     int // discovered since the requested cutoff
	WithCredit int
}

// Create inserts a track and sets its ID.
func (r *TrackRepository) Create(ctx context.Context, track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	metadata, err := json.Marshal(track.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := `
		INSERT INTO tracks (
			external_id, title, artist, album, format, platform, release_date,
			atmos_release_date, music_link, artwork_url, extra_metadata,
			discovered_at, updated_at, flagged
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	platform := track.Platform
	if platform == "" {
		platform = models.Platform
	}

	result, err := r.db.ExecContext(ctx, query,
		nullString(track.ExternalID),
		track.Title,
		track.Artist,
		track.Album,
		string(track.Format),
		platform,
		track.ReleaseDate.UTC(),
		nullTime(track.AtmosReleaseDate),
		nullString(track.MusicLink),
		nullString(track.Metadata.ArtworkURL),
		string(metadata),
		track.DiscoveredAt.UTC(),
		track.UpdatedAt.UTC(),
		track.Flagged,
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read track id: %w", err)
	}
	track.ID = id
	track.Platform = platform
	return nil
}

// Get retrieves a track by its surrogate id.
func (r *TrackRepository) Get(ctx context.Context, id int64) (*models.Track, error) {
	return r.scan(r.db.QueryRowContext(ctx, "SELECT "+trackColumns+" FROM tracks WHERE id = ?", id))
}

// GetByExternalID retrieves a track by its catalog id.
func (r *TrackRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Track, error) {
	return r.scan(r.db.QueryRowContext(ctx, "SELECT "+trackColumns+" FROM tracks WHERE external_id = ?", externalID))
}

// UpdateCatalog rewrites catalog-owned columns of an existing track. Community and scraper columns are untouched.
func (r *TrackRepository) UpdateCatalog(ctx context.Context, track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	metadata, err := json.Marshal(track.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := `
		UPDATE tracks
		SET external_id = ?, title = ?, artist = ?, album = ?, format = ?,
			release_date = ?, atmos_release_date = ?, music_link = ?,
			artwork_url = ?, extra_metadata = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		nullString(track.ExternalID),
		track.Title,
		track.Artist,
		track.Album,
		string(track.Format),
		track.ReleaseDate.UTC(),
		nullTime(track.AtmosReleaseDate),
		nullString(track.MusicLink),
		nullString(track.Metadata.ArtworkURL),
		string(metadata),
		track.UpdatedAt.UTC(),
		track.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	return expectOne(result, track.ID)
}

// MarkUpgraded records a Stereo track becoming immersive.
func (r *TrackRepository) MarkUpgraded(ctx context.Context, id int64, format models.Format, detectedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE tracks SET format = ?, atmos_release_date = ?, updated_at = ? WHERE id = ?",
		string(format), detectedAt.UTC(), detectedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark track upgraded: %w", err)
	}
	return expectOne(result, id)
}

// ListByFormat returns up to limit tracks with a catalog id in the given format, ordered by id after afterID.
func (r *TrackRepository) ListByFormat(ctx context.Context, format models.Format, afterID int64, limit int) ([]*models.Track, error) {
	query := "SELECT " + trackColumns + `
		FROM tracks
		WHERE format = ? AND external_id IS NOT NULL AND id > ?
		ORDER BY id
		LIMIT ?`
	return r.list(ctx, query, string(format), afterID, limit)
}

// List returns up to limit tracks, newest discoveries first. An empty format matches every format.
func (r *TrackRepository) List(ctx context.Context, format models.Format, limit int) ([]*models.Track, error) {
	query := "SELECT " + trackColumns + `
		FROM tracks
		WHERE (? = '' OR format = ?)
		ORDER BY discovered_at DESC, id DESC
		LIMIT ?`
	return r.list(ctx, query, string(format), string(format), limit)
}

// ListMissingCredits returns tracks with a page link that the credits job has not visited yet.
func (r *TrackRepository) ListMissingCredits(ctx context.Context, limit int) ([]*models.Track, error) {
	query := "SELECT " + trackColumns + `
		FROM tracks
		WHERE credits_checked_at IS NULL AND music_link IS NOT NULL AND music_link != ''
		ORDER BY discovered_at DESC, id DESC
		LIMIT ?`
	return r.list(ctx, query, limit)
}

// MarkCreditsChecked stamps the time the credits job last scraped a track.
func (r *TrackRepository) MarkCreditsChecked(ctx context.Context, id int64, at time.Time) error {
	result, err := r.db.ExecContext(ctx, "UPDATE tracks SET credits_checked_at = ? WHERE id = ?", at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark credits checked: %w", err)
	}
	return expectOne(result, id)
}

// TitleArtistKeys returns the normalized (title, artist) keys of every stored track.
func (r *TrackRepository) TitleArtistKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT title, artist FROM tracks")
	if err != nil {
		return nil, fmt.Errorf("failed to query track keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var title, artist string
		if err := rows.Scan(&title, &artist); err != nil {
			return nil, fmt.Errorf("failed to scan track key: %w", err)
		}
		keys[shared.NormalizeTrackKey(title, artist)] = struct{}{}
	}
	return keys, rows.Err()
}

// Stats counts tracks by format and those discovered since the cutoff.
func (r *TrackRepository) Stats(ctx context.Context, since time.Time) (*TrackStats, error) {
	stats := &TrackStats{ByFormat: make(map[models.Format]int)}

	rows, err := r.db.QueryContext(ctx, "SELECT format, COUNT(*) FROM tracks GROUP BY format")
	if err != nil {
		return nil, fmt.Errorf("failed to count tracks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var format string
		var count int
		if err := rows.Scan(&format, &count); err != nil {
			return nil, fmt.Errorf("failed to scan format count: %w", err)
		}
		stats.ByFormat[models.Format(format)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tracks WHERE discovered_at >= ?", since.UTC(),
	).Scan(&stats.Recent); err != nil {
		return nil, fmt.Errorf("failed to count recent tracks: %w", err)
	}

	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT track_id) FROM track_credits",
	).Scan(&stats.WithCredit); err != nil {
		return nil, fmt.Errorf("failed to count credited tracks: %w", err)
	}

	return stats, nil
}

func (r *TrackRepository) list(ctx context.Context, query string, args ...any) ([]*models.Track, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		track, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracks: %w", err)
	}
	return tracks, nil
}

func (r *TrackRepository) scan(row scanner) (*models.Track, error) {
	var (
		track            models.Track
		externalID       sql.NullString
		format           string
		atmosReleaseDate sql.NullTime
		musicLink        sql.NullString
		artworkURL       sql.NullString
		metadata         sql.NullString
		avgImmersiveness sql.NullFloat64
		reviewSummary    sql.NullString
		creditsChecked   sql.NullTime
	)

	err := row.Scan(
		&track.ID, &externalID, &track.Title, &track.Artist, &track.Album, &format,
		&track.Platform, &track.ReleaseDate, &atmosReleaseDate, &musicLink, &artworkURL,
		&metadata, &track.DiscoveredAt, &track.UpdatedAt, &avgImmersiveness,
		&track.Flagged, &reviewSummary, &creditsChecked,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrTrackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	track.ExternalID = externalID.String
	track.Format = models.Format(format)
	track.AtmosReleaseDate = timePtr(atmosReleaseDate)
	track.MusicLink = musicLink.String
	track.ReviewSummary = reviewSummary.String
	track.CreditsCheckedAt = timePtr(creditsChecked)
	if avgImmersiveness.Valid {
		v := avgImmersiveness.Float64
		track.AvgImmersiveness = &v
	}

	if s := strings.TrimSpace(metadata.String); s != "" {
		if err := json.Unmarshal([]byte(s), &track.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for track %d: %w", track.ID, err)
		}
	}
	if track.Metadata.ArtworkURL == "" {
		track.Metadata.ArtworkURL = artworkURL.String
	}

	return &track, nil
}

func expectOne(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", shared.ErrTrackNotFound, id)
	}
	return nil
}
