// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/selecta/internal/services"
	"github.com/desertthunder/selecta/internal/shared"
	"github.com/goccy/go-json"
)

// SetupTestDB creates an in-memory SQLite database with migrations applied
func SetupTestDB(t *testing.T) *sql.DB {
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

// Song describes a catalog song resource for [RawSong].
type Song struct {
	ID          string
	Name        string
	Artist      string
	Album       string
	ReleaseDate string
	URL         string
	Variants    []string
	Traits      []string
}

// RawSong renders s as a catalog JSON resource.
func RawSong(s Song) services.RawTrack {
	attrs := map[string]any{
		"name":        s.Name,
		"artistName":  s.Artist,
		"albumName":   s.Album,
		"releaseDate": s.ReleaseDate,
		"url":         s.URL,
		"genreNames":  []string{"Pop"},
		"artwork":     map[string]any{"url": "https://img.example/{w}x{h}.jpg"},
	}
	if s.Variants != nil {
		attrs["audioVariants"] = s.Variants
	}
	if s.Traits != nil {
		attrs["audioTraits"] = s.Traits
	}

	data, err := json.Marshal(map[string]any{"id": s.ID, "type": "songs", "attributes": attrs})
	if err != nil {
		panic(err)
	}
	return services.RawTrack(data)
}

// AtmosSong is a [RawSong] shorthand for a Dolby Atmos track.
func AtmosSong(id, name string) services.RawTrack {
	return RawSong(Song{ID: id, Name: name, Artist: "Artist " + id, Album: "Album", ReleaseDate: "2024-03-01",
		URL: "https://music.example/song/" + id, Variants: []string{"dolby-atmos", "lossless"}})
}

// StereoSong is a [RawSong] shorthand for a track without spatial audio.
func StereoSong(id, name string) services.RawTrack {
	return RawSong(Song{ID: id, Name: name, Artist: "Artist " + id, Album: "Album", ReleaseDate: "2024-03-01",
		URL: "https://music.example/song/" + id, Variants: []string{"lossless"}})
}

// FakeCatalog is an in-memory catalog keyed by playlist, album, search term and storefront.
//
// Storefront song lookups fall back to the "" storefront when a storefront has no entry.
type FakeCatalog struct {
	mu sync.Mutex

	Playlists map[string][]services.RawTrack
	Albums    map[string][]services.RawTrack
	Charts    []services.CatalogAlbum
	Search    map[string][]services.RawTrack
	Songs     map[string]map[string]services.RawTrack

	Errors map[string]error // keyed by "playlist:<id>", "album:<id>", "search:<term>", "songs:<storefront>", "charts"
	Panics map[string]bool

	Calls []string
}

// NewFakeCatalog returns an empty FakeCatalog.
func NewFakeCatalog() *FakeCatalog {
	return &FakeCatalog{
		Playlists: map[string][]services.RawTrack{},
		Albums:    map[string][]services.RawTrack{},
		Search:    map[string][]services.RawTrack{},
		Songs:     map[string]map[string]services.RawTrack{},
		Errors:    map[string]error{},
		Panics:    map[string]bool{},
	}
}

// AddSongs registers tracks for lookup by id in storefront.
func (f *FakeCatalog) AddSongs(storefront string, tracks ...services.RawTrack) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Songs[storefront] == nil {
		f.Songs[storefront] = map[string]services.RawTrack{}
	}
	for _, t := range tracks {
		f.Songs[storefront][t.ID()] = t
	}
}

// Called reports how many calls matched key.
func (f *FakeCatalog) Called(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == key {
			n++
		}
	}
	return n
}

func (f *FakeCatalog) record(key string) error {
	f.mu.Lock()
	f.Calls = append(f.Calls, key)
	err, shouldPanic := f.Errors[key], f.Panics[key]
	f.mu.Unlock()

	if shouldPanic {
		panic("fake catalog: " + key)
	}
	return err
}

func (f *FakeCatalog) FetchTracksByIDs(ctx context.Context, storefront string, ids []string) ([]services.RawTrack, error) {
	if err := f.record("songs:" + storefront); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	songs, ok := f.Songs[storefront]
	if !ok {
		songs = f.Songs[""]
	}

	var out []services.RawTrack
	for _, id := range ids {
		if t, ok := songs[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *FakeCatalog) FetchPlaylistTracks(ctx context.Context, playlistID, storefront string, limit, offset int) ([]services.RawTrack, error) {
	err := f.record("playlist:" + playlistID)
	tracks := f.Playlists[playlistID]
	if offset < len(tracks) {
		tracks = tracks[offset:]
	} else {
		tracks = nil
	}
	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return slices.Clone(tracks), err
}

func (f *FakeCatalog) FetchAlbumTracks(ctx context.Context, albumID, storefront string) ([]services.RawTrack, error) {
	if err := f.record("album:" + albumID); err != nil {
		return nil, err
	}
	return slices.Clone(f.Albums[albumID]), nil
}

func (f *FakeCatalog) FetchChartAlbums(ctx context.Context, storefront string, limit int) ([]services.CatalogAlbum, error) {
	if err := f.record("charts"); err != nil {
		return nil, err
	}
	return slices.Clone(f.Charts), nil
}

func (f *FakeCatalog) SearchTracks(ctx context.Context, storefront, term string, limit int) ([]services.RawTrack, error) {
	if err := f.record("search:" + term); err != nil {
		return nil, err
	}
	return slices.Clone(f.Search[term]), nil
}

// FakeError builds an error wrapping sentinel, the way catalog methods do.
func FakeError(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// AssertContains fails when s does not contain every want.
func AssertContains(t *testing.T, s string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(s, w) {
			t.Errorf("expected output to contain %q, got:\n%s", w, s)
		}
	}
}
