package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/selecta/internal/shared"
	"golang.org/x/oauth2"
)

func newTestCatalog(t *testing.T, handler http.HandlerFunc) *CatalogClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewCatalogClient(CatalogOpts{
		BaseURL: srv.URL,
		Tokens:  oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token", TokenType: "Bearer"}),
		Logger:  shared.NewLogger(io.Discard),
	})
}

// playlistHandler serves a playlist of total tracks honoring limit[tracks] and offset[tracks].
func playlistHandler(total int, honorLimit bool, requested *[]int, mu *sync.Mutex) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit[tracks]"))
		offset, _ := strconv.Atoi(q.Get("offset[tracks]"))

		mu.Lock()
		*requested = append(*requested, limit)
		mu.Unlock()

		size := limit
		if !honorLimit {
			size = 100
		}
		end := min(offset+size, total)

		var items []string
		for i := offset; i < end; i++ {
			items = append(items, fmt.Sprintf(`{"id":"%d","attributes":{"audioVariants":["dolby-atmos"]}}`, i))
		}

		next := ""
		if end < total {
			next = fmt.Sprintf(`,"next":"/v1/catalog/us/playlists/pl.test/tracks?offset=%d"`, end)
		}

		fmt.Fprintf(w, `{"data":[{"id":"pl.test","relationships":{"tracks":{"data":[%s]%s}}}]}`, strings.Join(items, ","), next)
	}
}

func TestCatalogClient(t *testing.T) {
	ctx := context.Background()

	t.Run("FetchPlaylistTracks pages and stops at limit", func(t *testing.T) {
		var requested []int
		var mu sync.Mutex
		client := newTestCatalog(t, playlistHandler(150, true, &requested, &mu))

		tracks, err := client.FetchPlaylistTracks(ctx, "pl.test", "us", 120, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 120 {
			t.Fatalf("expected 120 tracks, got %d", len(tracks))
		}
		if len(requested) != 2 || requested[0] != 100 || requested[1] != 20 {
			t.Errorf("expected page requests [100 20], got %v", requested)
		}
		if tracks[0].ID() != "0" || tracks[119].ID() != "119" {
			t.Errorf("unexpected track order: first %s last %s", tracks[0].ID(), tracks[119].ID())
		}
	})

	t.Run("FetchPlaylistTracks truncates oversized pages", func(t *testing.T) {
		var requested []int
		var mu sync.Mutex
		client := newTestCatalog(t, playlistHandler(500, false, &requested, &mu))

		tracks, err := client.FetchPlaylistTracks(ctx, "pl.test", "us", 120, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 120 {
			t.Errorf("expected exactly 120 tracks, got %d", len(tracks))
		}
	})

	t.Run("FetchPlaylistTracks stops without next cursor", func(t *testing.T) {
		var requested []int
		var mu sync.Mutex
		client := newTestCatalog(t, playlistHandler(30, true, &requested, &mu))

		tracks, err := client.FetchPlaylistTracks(ctx, "pl.test", "us", 100, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 30 || len(requested) != 1 {
			t.Errorf("expected 30 tracks in 1 request, got %d in %d", len(tracks), len(requested))
		}
	})

	t.Run("FetchPlaylistTracks respects offset", func(t *testing.T) {
		var requested []int
		var mu sync.Mutex
		client := newTestCatalog(t, playlistHandler(150, true, &requested, &mu))

		tracks, _ := client.FetchPlaylistTracks(ctx, "pl.test", "us", 10, 140)
		if len(tracks) != 10 || tracks[0].ID() != "140" {
			t.Errorf("unexpected tracks from offset: %d", len(tracks))
		}
	})

	t.Run("FetchPlaylistTracks only counts kept tracks toward the limit", func(t *testing.T) {
		var offsets []string
		client := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
			offset := r.URL.Query().Get("offset[tracks]")
			offsets = append(offsets, offset)
			if offset == "0" {
				fmt.Fprint(w, `{"data":[{"relationships":{"tracks":{"data":[
					{"id":"0","attributes":{}},null,"junk",{"id":"1","attributes":{}}
				],"next":"/v1/catalog/us/playlists/pl.test/tracks?offset=4"}}}]}`)
				return
			}
			fmt.Fprint(w, `{"data":[{"relationships":{"tracks":{"data":[
				{"id":"4","attributes":{}},{"id":"5","attributes":{}},{"id":"6","attributes":{}}
			]}}}]}`)
		})

		tracks, err := client.FetchPlaylistTracks(ctx, "pl.test", "us", 4, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 4 {
			t.Fatalf("expected 4 tracks despite junk entries, got %d", len(tracks))
		}
		if tracks[2].ID() != "4" || tracks[3].ID() != "5" {
			t.Errorf("unexpected second page tracks %s %s", tracks[2].ID(), tracks[3].ID())
		}
		if len(offsets) != 2 || offsets[1] != "4" {
			t.Errorf("expected second request at offset 4, got %v", offsets)
		}
	})

	t.Run("request headers and params", func(t *testing.T) {
		var gotAuth, gotExtend, gotIDs, gotPath string
		client := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotExtend = r.URL.Query().Get("extend")
			gotIDs = r.URL.Query().Get("ids")
			gotPath = r.URL.Path
			fmt.Fprint(w, `{"data":[{"id":"1","attributes":{}},{"id":"2","attributes":{}}]}`)
		})

		tracks, err := client.FetchTracksByIDs(ctx, "gb", []string{"1", "2"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 2 {
			t.Errorf("expected 2 tracks, got %d", len(tracks))
		}
		if gotAuth != "Bearer test-token" {
			t.Errorf("expected bearer header, got %q", gotAuth)
		}
		if gotExtend != "audioVariants" {
			t.Errorf("expected extend=audioVariants, got %q", gotExtend)
		}
		if gotIDs != "1,2" || gotPath != "/catalog/gb/songs" {
			t.Errorf("unexpected request %s ids=%s", gotPath, gotIDs)
		}
	})

	t.Run("FetchTracksByIDs with no ids makes no request", func(t *testing.T) {
		called := false
		client := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) { called = true })

		tracks, err := client.FetchTracksByIDs(ctx, "us", nil)
		if err != nil || tracks != nil || called {
			t.Errorf("expected no-op, got %v %v called=%v", tracks, err, called)
		}
	})

	t.Run("unauthorized degrades to empty with auth error", func(t *testing.T) {
		client := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		tracks, err := client.SearchTracks(ctx, "us", "Dolby Atmos", 25)
		if tracks != nil {
			t.Errorf("expected nil tracks, got %d", len(tracks))
		}
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("forbidden is treated as auth failure", func(t *testing.T) {
		client := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})

		if _, err := client.FetchAlbumTracks(ctx, "1", "us"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("server error degrades to empty", func(t *testing.T) {
		client := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"errors":[{"detail":"secret body"}]}`)
		})

		tracks, err := client.FetchPlaylistTracks(ctx, "pl.x", "us", 100, 0)
		if len(tracks) != 0 {
			t.Errorf("expected no tracks, got %d", len(tracks))
		}
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("logs status without response body", func(t *testing.T) {
		var buf strings.Builder
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, `secret body`)
		}))
		defer srv.Close()

		client := NewCatalogClient(CatalogOpts{BaseURL: srv.URL, Logger: log.New(&buf)})
		_, _ = client.FetchChartAlbums(ctx, "us", 10)

		out := buf.String()
		if !strings.Contains(out, "502") || strings.Contains(out, "secret body") {
			t.Errorf("unexpected log output %q", out)
		}
	})

	t.Run("invalid JSON degrades to empty", func(t *testing.T) {
		client := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data":[`)
		})

		tracks, err := client.FetchTracksByIDs(ctx, "us", []string{"1"})
		if tracks != nil || !errors.Is(err, shared.ErrDecodeResponse) {
			t.Errorf("expected decode error, got %v %v", tracks, err)
		}
	})

	t.Run("token source failure is an auth error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("request should not reach the server")
		}))
		defer srv.Close()

		client := NewCatalogClient(CatalogOpts{
			BaseURL: srv.URL,
			Tokens:  failingTokenSource{},
			Logger:  shared.NewLogger(io.Discard),
		})

		if _, err := client.FetchTracksByIDs(ctx, "us", []string{"1"}); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("FetchChartAlbums flattens chart groups", func(t *testing.T) {
		var gotLimit string
		client := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
			gotLimit = r.URL.Query().Get("limit")
			fmt.Fprint(w, `{"results":{"albums":[
				{"chart":"most-played","data":[{"id":"a1","attributes":{"name":"One","artistName":"X"}},{"id":"a2","attributes":{"name":"Two"}}]},
				{"chart":"new","data":[{"id":"a3","attributes":{"name":"Three"}},{"attributes":{"name":"no id"}}]}
			]}}`)
		})

		albums, err := client.FetchChartAlbums(ctx, "us", 500)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(albums) != 3 || albums[0].Artist != "X" {
			t.Errorf("unexpected albums %+v", albums)
		}
		if gotLimit != "50" {
			t.Errorf("expected chart limit clamped to 50, got %s", gotLimit)
		}
	})

	t.Run("SearchTracks accepts object and list shapes", func(t *testing.T) {
		for name, body := range map[string]string{
			"object": `{"results":{"songs":{"data":[{"id":"1"},{"id":"2"}]}}}`,
			"list":   `{"results":{"songs":[{"data":[{"id":"1"}]},{"data":[{"id":"2"}]}]}}`,
		} {
			t.Run(name, func(t *testing.T) {
				var gotTerm string
				client := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
					gotTerm = r.URL.Query().Get("term")
					fmt.Fprint(w, body)
				})

				tracks, err := client.SearchTracks(ctx, "us", "Spatial Audio", 10)
				if err != nil || len(tracks) != 2 {
					t.Errorf("expected 2 tracks, got %d (%v)", len(tracks), err)
				}
				if gotTerm != "Spatial Audio" {
					t.Errorf("unexpected term %q", gotTerm)
				}
			})
		}
	})

	t.Run("empty search results", func(t *testing.T) {
		client := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"results":{}}`)
		})

		tracks, err := client.SearchTracks(ctx, "us", "nothing", 10)
		if err != nil || len(tracks) != 0 {
			t.Errorf("expected empty result, got %d %v", len(tracks), err)
		}
	})

	t.Run("FetchAlbumTracks", func(t *testing.T) {
		client := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("include") != "tracks" {
				t.Errorf("expected include=tracks")
			}
			fmt.Fprint(w, `{"data":[{"id":"al1","relationships":{"tracks":{"data":[{"id":"t1"},{"id":"t2"}]}}}]}`)
		})

		tracks, err := client.FetchAlbumTracks(ctx, "al1", "us")
		if err != nil || len(tracks) != 2 || tracks[1].ID() != "t2" {
			t.Errorf("unexpected album tracks %v %v", tracks, err)
		}
	})
}

type failingTokenSource struct{}

func (failingTokenSource) Token() (*oauth2.Token, error) {
	return nil, fmt.Errorf("%w: no key", shared.ErrMissingCredentials)
}
