package services

import (
	"strings"
	"time"

	"github.com/desertthunder/selecta/internal/models"
)

const (
	artworkSize = "300"
	unknown     = "Unknown"
)

// ToDiscovered maps a classified catalog track to a [models.DiscoveredTrack].
//
// Missing names default to "Unknown". An unparseable release date falls back to detectedAt.
// AtmosReleaseDate mirrors the release date for immersive tracks.
func ToDiscovered(raw RawTrack, support SpatialSupport, detectedAt time.Time) models.DiscoveredTrack {
	attrs := raw.Get("attributes")

	release, ok := ParseReleaseDate(attrs.Get("releaseDate").String())
	if !ok {
		release = detectedAt
	}

	d := models.DiscoveredTrack{
		ExternalID:  raw.ID(),
		Title:       orUnknown(attrs.Get("name").String()),
		Artist:      orUnknown(attrs.Get("artistName").String()),
		Album:       orUnknown(attrs.Get("albumName").String()),
		Format:      models.FormatFor(support.HasSpatial, support.HasAtmos),
		ReleaseDate: release,
		MusicLink:   attrs.Get("url").String(),
		Metadata: models.TrackMetadata{
			DurationMS:  attrs.Get("durationInMillis").Int(),
			ISRC:        attrs.Get("isrc").String(),
			Variants:    support.Variants,
			ArtworkURL:  ArtworkURL(attrs.Get("artwork.url").String()),
			Composer:    attrs.Get("composerName").String(),
			TrackNumber: int(attrs.Get("trackNumber").Int()),
			DiscNumber:  int(attrs.Get("discNumber").Int()),
		},
	}

	for _, g := range attrs.Get("genreNames").Array() {
		if s := g.String(); s != "" {
			d.Metadata.Genres = append(d.Metadata.Genres, s)
		}
	}

	if d.Format.IsImmersive() {
		atmos := release
		d.AtmosReleaseDate = &atmos
	}

	return d
}

// ParseReleaseDate accepts YYYY-MM-DD, YYYY-MM, YYYY and RFC 3339 timestamps.
func ParseReleaseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, time.RFC3339Nano, "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ArtworkURL resolves the {w}x{h} artwork template to a fixed size.
func ArtworkURL(template string) string {
	return strings.NewReplacer("{w}", artworkSize, "{h}", artworkSize).Replace(template)
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return unknown
	}
	return s
}
