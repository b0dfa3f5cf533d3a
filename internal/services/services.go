package services

import (
	"github.com/tidwall/gjson"
)

// RawTrack is the raw JSON of one catalog song resource.
type RawTrack []byte

// ID returns the catalog id of the track.
func (r RawTrack) ID() string {
	return gjson.GetBytes(r, "id").String()
}

// Get reads a gjson path from the track.
func (r RawTrack) Get(path string) gjson.Result {
	return gjson.GetBytes(r, path)
}

// CatalogAlbum is an album reference from a chart.
type CatalogAlbum struct {
	ID     string
	Name   string
	Artist string
}

func rawTracks(results []gjson.Result) []RawTrack {
	tracks := make([]RawTrack, 0, len(results))
	for _, r := range results {
		if !r.IsObject() {
			continue
		}
		tracks = append(tracks, RawTrack(r.Raw))
	}
	return tracks
}
