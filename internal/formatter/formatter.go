// package formatter exports stored tracks to various formats (CSV, Markdown, plain text, legacy JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/selecta/internal/models"
	"github.com/desertthunder/selecta/internal/shared"
	"github.com/goccy/go-json"
)

// Export formats accepted by [WriteExport].
const (
	CSV      = "csv"
	Markdown = "md"
	Text     = "txt"
	JSON     = "json"
)

const dateLayout = "2006-01-02"

// ExportToCSV renders tracks with columns: ID, Title, Artist, Album, Format, Release Date, Atmos Release Date, Link, ISRC
func ExportToCSV(tracks []*models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Format", "Release Date", "Atmos Release Date", "Link", "ISRC"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		record := []string{
			track.ExternalID,
			track.Title,
			track.Artist,
			track.Album,
			string(track.Format),
			formatDate(&track.ReleaseDate),
			formatDate(track.AtmosReleaseDate),
			track.MusicLink,
			track.Metadata.ISRC,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders tracks as a titled Markdown list with per-format totals.
func ExportToMarkdown(title string, tracks []*models.Track) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(tracks))
	for _, f := range []models.Format{models.FormatDolbyAtmos, models.FormatSpatialAudio, models.FormatStereo} {
		if n := countFormat(tracks, f); n > 0 {
			fmt.Fprintf(&buf, "**%s**: %d\n", f, n)
		}
	}

	buf.WriteString("\n## Tracks\n\n")
	for i, track := range tracks {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		name := fmt.Sprintf("%s - %s", track.Artist, track.Title)
		if track.MusicLink != "" {
			name = fmt.Sprintf("[%s](%s)", name, track.MusicLink)
		}
		fmt.Fprintf(&buf, "%d. %s%s [%s]\n", i+1, name, albumPart, track.Format)
	}

	return buf.Bytes(), nil
}

// ExportToText renders tracks as a numbered plain text list.
func ExportToText(tracks []*models.Track) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(tracks))
	for i, track := range tracks {
		fmt.Fprintf(&buf, "%d. %s - %s [%s]\n", i+1, track.Artist, track.Title, track.Format)
	}

	return buf.Bytes(), nil
}

// ExportToLegacyJSON renders tracks in the data.json shape read by the legacy import.
func ExportToLegacyJSON(tracks []*models.Track) ([]byte, error) {
	entries := make([]models.LegacyTrack, 0, len(tracks))
	for _, t := range tracks {
		entries = append(entries, models.LegacyTrack{
			Title:            t.Title,
			Artist:           t.Artist,
			Album:            t.Album,
			Format:           string(t.Format),
			ReleaseDate:      formatDate(&t.ReleaseDate),
			AtmosReleaseDate: formatDate(t.AtmosReleaseDate),
			MusicLink:        t.MusicLink,
			AppleMusicID:     t.ExternalID,
		})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tracks: %w", err)
	}
	return data, nil
}

// WriteExport renders tracks in format and writes them to path.
//
// Defaults to selecta_tracks.{format} as the filename.
func WriteExport(tracks []*models.Track, format, path string) (string, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if path == "" {
		path = "selecta_tracks." + format
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case CSV:
		data, err = ExportToCSV(tracks)
	case Markdown:
		data, err = ExportToMarkdown("Spatial Audio Tracks", tracks)
	case Text:
		data, err = ExportToText(tracks)
	case JSON:
		data, err = ExportToLegacyJSON(tracks)
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func countFormat(tracks []*models.Track, f models.Format) int {
	n := 0
	for _, t := range tracks {
		if t.Format == f {
			n++
		}
	}
	return n
}
