package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/selecta/internal/shared"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

const (
	DefaultCatalogURL = "https://api.music.apple.com/v1"

	maxPlaylistPage = 100
	maxChartLimit   = 50
	maxSearchLimit  = 25
	maxBodyBytes    = 16 << 20
)

// CatalogClient reads songs, playlists, albums, charts and search results from the Apple Music catalog.
type CatalogClient struct {
	baseURL        string
	httpClient     *http.Client
	musicUserToken string
	logger         *log.Logger
}

// CatalogOpts configures a [CatalogClient].
type CatalogOpts struct {
	BaseURL        string
	Tokens         oauth2.TokenSource // developer token source, applied as a Bearer header
	Transport      http.RoundTripper  // base transport, defaults to http.DefaultTransport
	Timeout        time.Duration
	MusicUserToken string
	Logger         *log.Logger
}

// NewCatalogClient creates a catalog client. The developer token is attached by an [oauth2.Transport].
func NewCatalogClient(opts CatalogOpts) *CatalogClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultCatalogURL
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	transport := opts.Transport
	if opts.Tokens != nil {
		transport = &oauth2.Transport{Source: opts.Tokens, Base: opts.Transport}
	}

	return &CatalogClient{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		httpClient:     &http.Client{Timeout: opts.Timeout, Transport: transport},
		musicUserToken: opts.MusicUserToken,
		logger:         shared.WithLogger(opts.Logger, "component", "catalog"),
	}
}

// get performs a GET against the catalog and returns the validated JSON body.
//
// Only the endpoint path and status code are logged.
func (c *CatalogClient) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("extend", "audioVariants")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", shared.ErrAPIRequest, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.musicUserToken != "" {
		req.Header.Set("Music-User-Token", c.musicUserToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isCredentialError(err) {
			c.logger.Error("developer token unavailable", "endpoint", endpoint, "error", err)
			return nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
		}
		c.logger.Warn("catalog request failed", "endpoint", endpoint, "error", err)
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.Error("catalog rejected developer token, check credentials", "endpoint", endpoint, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", shared.ErrNotAuthenticated, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Warn("catalog request failed", "endpoint", endpoint, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.logger.Warn("failed to read catalog response", "endpoint", endpoint, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if !gjson.ValidBytes(body) {
		c.logger.Warn("catalog returned invalid JSON", "endpoint", endpoint, "status", resp.StatusCode)
		return nil, shared.ErrDecodeResponse
	}

	c.logger.Debug("catalog request", "endpoint", endpoint, "status", resp.StatusCode)
	return body, nil
}

// FetchTracksByIDs fetches songs by catalog id in one request.
func (c *CatalogClient) FetchTracksByIDs(ctx context.Context, storefront string, ids []string) ([]RawTrack, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))

	body, err := c.get(ctx, fmt.Sprintf("/catalog/%s/songs", storefront), params)
	if err != nil {
		return nil, err
	}
	return rawTracks(gjson.GetBytes(body, "data").Array()), nil
}

// FetchPlaylistTracks pages through a playlist's tracks starting at offset and returns at most limit of them.
//
// Pages are requested with min(remaining, 100) until the limit is reached or the playlist has no next page.
// When a later page fails the tracks gathered so far are returned together with the error.
func (c *CatalogClient) FetchPlaylistTracks(ctx context.Context, playlistID, storefront string, limit, offset int) ([]RawTrack, error) {
	var tracks []RawTrack
	endpoint := fmt.Sprintf("/catalog/%s/playlists/%s", storefront, url.PathEscape(playlistID))

	for remaining := limit; remaining > 0; {
		pageSize := min(remaining, maxPlaylistPage)

		params := url.Values{}
		params.Set("include", "tracks")
		params.Set("limit[tracks]", strconv.Itoa(pageSize))
		params.Set("offset[tracks]", strconv.Itoa(offset))

		body, err := c.get(ctx, endpoint, params)
		if err != nil {
			return tracks, err
		}

		rel := gjson.GetBytes(body, "data.0.relationships.tracks")
		items := rel.Get("data").Array()
		if len(items) == 0 {
			break
		}

		// non-object entries are dropped, so only kept tracks count toward the limit
		page := rawTracks(items)
		if len(page) > remaining {
			page = page[:remaining]
		}

		tracks = append(tracks, page...)
		remaining -= len(page)
		offset += len(items)

		if rel.Get("next").String() == "" {
			break
		}
	}

	return tracks, nil
}

// FetchAlbumTracks returns the tracks of an album.
func (c *CatalogClient) FetchAlbumTracks(ctx context.Context, albumID, storefront string) ([]RawTrack, error) {
	params := url.Values{}
	params.Set("include", "tracks")

	body, err := c.get(ctx, fmt.Sprintf("/catalog/%s/albums/%s", storefront, url.PathEscape(albumID)), params)
	if err != nil {
		return nil, err
	}
	return rawTracks(gjson.GetBytes(body, "data.0.relationships.tracks.data").Array()), nil
}

// FetchChartAlbums returns the storefront's top chart albums.
func (c *CatalogClient) FetchChartAlbums(ctx context.Context, storefront string, limit int) ([]CatalogAlbum, error) {
	params := url.Values{}
	params.Set("types", "albums")
	params.Set("limit", strconv.Itoa(clamp(limit, maxChartLimit)))

	body, err := c.get(ctx, fmt.Sprintf("/catalog/%s/charts", storefront), params)
	if err != nil {
		return nil, err
	}

	var albums []CatalogAlbum
	for _, item := range resultsData(body, "albums") {
		id := item.Get("id").String()
		if id == "" {
			continue
		}
		albums = append(albums, CatalogAlbum{
			ID:     id,
			Name:   item.Get("attributes.name").String(),
			Artist: item.Get("attributes.artistName").String(),
		})
	}
	return albums, nil
}

// SearchTracks runs a song search for term.
func (c *CatalogClient) SearchTracks(ctx context.Context, storefront, term string, limit int) ([]RawTrack, error) {
	params := url.Values{}
	params.Set("term", term)
	params.Set("types", "songs")
	params.Set("limit", strconv.Itoa(clamp(limit, maxSearchLimit)))

	body, err := c.get(ctx, fmt.Sprintf("/catalog/%s/search", storefront), params)
	if err != nil {
		return nil, err
	}
	return rawTracks(resultsData(body, "songs")), nil
}

// resultsData flattens results.<category> whether it is a single {data: [...]} object or a list of them.
func resultsData(body []byte, category string) []gjson.Result {
	section := gjson.GetBytes(body, "results."+category)
	switch {
	case section.IsArray():
		var items []gjson.Result
		for _, group := range section.Array() {
			items = append(items, group.Get("data").Array()...)
		}
		return items
	case section.IsObject():
		return section.Get("data").Array()
	default:
		return nil
	}
}

func clamp(n, ceiling int) int {
	if n <= 0 || n > ceiling {
		return ceiling
	}
	return n
}

func isCredentialError(err error) bool {
	return errors.Is(err, shared.ErrMissingCredentials) ||
		errors.Is(err, shared.ErrInvalidCredentials) ||
		errors.Is(err, shared.ErrTokenSigning)
}
