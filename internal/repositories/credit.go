package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/selecta/internal/models"
)

// CreditRepository persists engineers and their track credits.
type CreditRepository struct {
	db DBTX
}

// NewCreditRepository creates a CreditRepository over a database or transaction.
func NewCreditRepository(db DBTX) *CreditRepository {
	return &CreditRepository{db: db}
}

// UpsertEngineer returns the engineer with name, creating it when missing.
func (r *CreditRepository) UpsertEngineer(ctx context.Context, name, slug string) (*models.Engineer, error) {
	if name == "" {
		return nil, fmt.Errorf("engineer name is required")
	}

	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO engineers (name, slug) VALUES (?, ?) ON CONFLICT(name) DO NOTHING", name, slug,
	); err != nil {
		return nil, fmt.Errorf("failed to insert engineer: %w", err)
	}

	var e models.Engineer
	var image *string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, slug, profile_image_url FROM engineers WHERE name = ?", name,
	).Scan(&e.ID, &e.Name, &e.Slug, &image)
	if err != nil {
		return nil, fmt.Errorf("failed to load engineer: %w", err)
	}
	if image != nil {
		e.ProfileImageURL = *image
	}
	return &e, nil
}

// AddCredit links an engineer to a track in role. It reports false when the credit already existed.
func (r *CreditRepository) AddCredit(ctx context.Context, trackID, engineerID int64, role string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO track_credits (track_id, engineer_id, role) VALUES (?, ?, ?)",
		trackID, engineerID, role,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert credit: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// ListByTrack returns a track's credits with engineer names.
func (r *CreditRepository) ListByTrack(ctx context.Context, trackID int64) ([]models.TrackCredit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tc.id, tc.track_id, tc.engineer_id, tc.role, e.name
		FROM track_credits tc
		JOIN engineers e ON e.id = tc.engineer_id
		WHERE tc.track_id = ?
		ORDER BY tc.id`, trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to query credits: %w", err)
	}
	defer rows.Close()

	var credits []models.TrackCredit
	for rows.Next() {
		var c models.TrackCredit
		if err := rows.Scan(&c.ID, &c.TrackID, &c.EngineerID, &c.Role, &c.Engineer); err != nil {
			return nil, fmt.Errorf("failed to scan credit: %w", err)
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

// CountEngineers returns the number of stored engineers.
func (r *CreditRepository) CountEngineers(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM engineers").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count engineers: %w", err)
	}
	return n, nil
}
