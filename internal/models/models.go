package models

import (
	"fmt"
	"strings"
	"time"
)

// Format is the best audio format a catalog reports for a track.
type Format string

const (
	FormatStereo       Format = "Stereo"
	FormatSpatialAudio Format = "Spatial Audio"
	FormatDolbyAtmos   Format = "Dolby Atmos"
)

// Platform is the only catalog currently crawled.
const Platform = "Apple Music"

// FormatFor maps spatial classification flags to a [Format]. Atmos wins over plain spatial.
func FormatFor(hasSpatial, hasAtmos bool) Format {
	switch {
	case hasAtmos:
		return FormatDolbyAtmos
	case hasSpatial:
		return FormatSpatialAudio
	default:
		return FormatStereo
	}
}

// IsImmersive reports whether f is Spatial Audio or Dolby Atmos.
func (f Format) IsImmersive() bool {
	return f == FormatSpatialAudio || f == FormatDolbyAtmos
}

// ParseFormat accepts the stored display names plus a few loose spellings.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "")) {
	case "stereo":
		return FormatStereo, nil
	case "spatialaudio", "spatial":
		return FormatSpatialAudio, nil
	case "dolbyatmos", "atmos":
		return FormatDolbyAtmos, nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// TrackMetadata holds the catalog attributes stored in the extra_metadata column.
type TrackMetadata struct {
	Genres      []string `json:"genres,omitempty"`
	DurationMS  int64    `json:"duration_ms,omitempty"`
	ISRC        string   `json:"isrc,omitempty"`
	Variants    []string `json:"audio_variants,omitempty"`
	ArtworkURL  string   `json:"artwork_url,omitempty"`
	Composer    string   `json:"composer,omitempty"`
	TrackNumber int      `json:"track_number,omitempty"`
	DiscNumber  int      `json:"disc_number,omitempty"`
}

// DiscoveredTrack is a catalog track that passed spatial classification during a discovery pass.
//
// Regions is nil when region augmentation did not run, which leaves stored availability untouched.
type DiscoveredTrack struct {
	ExternalID       string
	Title            string
	Artist           string
	Album            string
	Format           Format
	ReleaseDate      time.Time
	AtmosReleaseDate *time.Time
	MusicLink        string
	Metadata         TrackMetadata
	Regions          []RegionRecord
}

// RegionRecord is a track's availability in one storefront.
type RegionRecord struct {
	Storefront string `json:"storefront"`
	Available  bool   `json:"available"`
	Format     Format `json:"format"`
}
