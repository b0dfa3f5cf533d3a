package models

import (
	"fmt"
	"time"
)

// Track is a persisted catalog track.
//
// Catalog-owned fields are rewritten on every sync. AvgImmersiveness, Flagged and
// ReviewSummary belong to the community layer and are never written by sync.
type Track struct {
	ID               int64
	ExternalID       string
	Title            string
	Artist           string
	Album            string
	Format           Format
	Platform         string
	ReleaseDate      time.Time
	AtmosReleaseDate *time.Time
	MusicLink        string
	Metadata         TrackMetadata
	DiscoveredAt     time.Time
	UpdatedAt        time.Time

	AvgImmersiveness *float64
	Flagged          bool
	ReviewSummary    string

	CreditsCheckedAt *time.Time
}

// NewTrackFromDiscovered builds an unsaved [Track] stamped with now.
func NewTrackFromDiscovered(d DiscoveredTrack, now time.Time) *Track {
	t := &Track{Platform: Platform, DiscoveredAt: now}
	t.ApplyCatalog(d, now)
	return t
}

// ApplyCatalog copies catalog-owned fields from d and bumps UpdatedAt.
func (t *Track) ApplyCatalog(d DiscoveredTrack, now time.Time) {
	t.ExternalID = d.ExternalID
	t.Title = d.Title
	t.Artist = d.Artist
	t.Album = d.Album
	t.Format = d.Format
	t.ReleaseDate = d.ReleaseDate
	t.AtmosReleaseDate = d.AtmosReleaseDate
	t.MusicLink = d.MusicLink
	t.Metadata = d.Metadata
	t.UpdatedAt = now
}

// Validate checks the fields required by the tracks table.
func (t *Track) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if t.Artist == "" {
		return fmt.Errorf("artist is required")
	}
	if t.Format == "" {
		return fmt.Errorf("format is required")
	}
	if t.ReleaseDate.IsZero() {
		return fmt.Errorf("release date is required")
	}
	return nil
}
