package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/selecta/internal/models"
)

// RegionRepository persists per-storefront availability for tracks.
type RegionRepository struct {
	db DBTX
}

// NewRegionRepository creates a RegionRepository over a database or transaction.
func NewRegionRepository(db DBTX) *RegionRepository {
	return &RegionRepository{db: db}
}

// Replace deletes every availability row of a track and inserts records in its place.
//
// Callers run it inside the same transaction as the track upsert.
func (r *RegionRepository) Replace(ctx context.Context, trackID int64, records []models.RegionRecord) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM region_availability WHERE track_id = ?", trackID); err != nil {
		return fmt.Errorf("failed to clear region availability: %w", err)
	}

	query := `
		INSERT INTO region_availability (track_id, storefront, is_available, format)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(track_id, storefront) DO UPDATE
		SET is_available = excluded.is_available, format = excluded.format
	`
	for _, rec := range records {
		if _, err := r.db.ExecContext(ctx, query, trackID, rec.Storefront, rec.Available, string(rec.Format)); err != nil {
			return fmt.Errorf("failed to insert region %s: %w", rec.Storefront, err)
		}
	}
	return nil
}

// ListByTrack returns a track's availability ordered by storefront.
func (r *RegionRepository) ListByTrack(ctx context.Context, trackID int64) ([]models.RegionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT storefront, is_available, format
		FROM region_availability
		WHERE track_id = ?
		ORDER BY storefront`, trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to query region availability: %w", err)
	}
	defer rows.Close()

	var records []models.RegionRecord
	for rows.Next() {
		var rec models.RegionRecord
		var format string
		if err := rows.Scan(&rec.Storefront, &rec.Available, &format); err != nil {
			return nil, fmt.Errorf("failed to scan region availability: %w", err)
		}
		rec.Format = models.Format(format)
		records = append(records, rec)
	}
	return records, rows.Err()
}
