package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/selecta/internal/models"
	"github.com/desertthunder/selecta/internal/services"
	"github.com/desertthunder/selecta/internal/shared"
)

// TrackFetcher looks up catalog tracks by id in a storefront.
type TrackFetcher interface {
	FetchTracksByIDs(ctx context.Context, storefront string, ids []string) ([]services.RawTrack, error)
}

// Catalog is the subset of [services.CatalogClient] a discovery pass crawls.
type Catalog interface {
	TrackFetcher
	FetchPlaylistTracks(ctx context.Context, playlistID, storefront string, limit, offset int) ([]services.RawTrack, error)
	FetchAlbumTracks(ctx context.Context, albumID, storefront string) ([]services.RawTrack, error)
	FetchChartAlbums(ctx context.Context, storefront string, limit int) ([]services.CatalogAlbum, error)
	SearchTracks(ctx context.Context, storefront, term string, limit int) ([]services.RawTrack, error)
}

// Aggregator runs every discovery strategy against the catalog and merges the spatial tracks they find.
type Aggregator struct {
	catalog Catalog
	regions *RegionChecker
	cfg     shared.DiscoveryConfig
	logger  *log.Logger
	now     func() time.Time
}

// AggregatorOpts configures an [Aggregator]. Regions is optional.
type AggregatorOpts struct {
	Catalog   Catalog
	Regions   *RegionChecker
	Discovery shared.DiscoveryConfig
	Logger    *log.Logger
	Now       func() time.Time
}

// NewAggregator creates an Aggregator, filling unset limits from [shared.DefaultConfig].
func NewAggregator(opts AggregatorOpts) *Aggregator {
	defaults := shared.DefaultConfig().Discovery
	if opts.Discovery.PlaylistTrackLimit <= 0 {
		opts.Discovery.PlaylistTrackLimit = defaults.PlaylistTrackLimit
	}
	if opts.Discovery.ChartAlbumLimit <= 0 {
		opts.Discovery.ChartAlbumLimit = defaults.ChartAlbumLimit
	}
	if opts.Discovery.SearchLimit <= 0 {
		opts.Discovery.SearchLimit = defaults.SearchLimit
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Aggregator{
		catalog: opts.Catalog,
		regions: opts.Regions,
		cfg:     opts.Discovery,
		logger:  shared.WithLogger(opts.Logger, "component", "discovery"),
		now:     opts.Now,
	}
}

// discoverySet keeps the first occurrence of every spatial track by catalog id.
type discoverySet struct {
	seen       map[string]struct{}
	tracks     []models.DiscoveredTrack
	detectedAt time.Time
}

func (s *discoverySet) add(raw []services.RawTrack) int {
	added := 0
	for _, r := range raw {
		id := r.ID()
		if id == "" {
			continue
		}
		if _, ok := s.seen[id]; ok {
			continue
		}

		support := services.ClassifySpatialSupport(r)
		if !support.HasSpatial {
			continue
		}

		s.seen[id] = struct{}{}
		s.tracks = append(s.tracks, services.ToDiscovered(r, support, s.detectedAt))
		added++
	}
	return added
}

type strategy struct {
	phase Phase
	run   func(ctx context.Context, storefront string, set *discoverySet, progress chan<- ProgressUpdate)
}

// DiscoverAll crawls curated playlists, new-music and chart playlists, chart albums and keyword
// searches in that order, returning the deduplicated spatial tracks.
//
// A failing strategy, playlist, album or term is logged and skipped. When a region checker is
// configured, each returned track carries its per-storefront availability.
func (a *Aggregator) DiscoverAll(ctx context.Context, storefront string, progress chan<- ProgressUpdate) []models.DiscoveredTrack {
	set := &discoverySet{seen: make(map[string]struct{}), detectedAt: a.now().UTC()}

	strategies := []strategy{
		{DiscoverSpatialPlaylists, a.spatialPlaylists},
		{DiscoverNewMusic, a.newMusicPlaylists},
		{DiscoverChartAlbums, a.chartAlbums},
		{DiscoverSearch, a.search},
	}

	for _, s := range strategies {
		a.runStrategy(ctx, s, storefront, set, progress)
		sendProgress(progress, strategyDoneUpdate(s.phase, len(set.tracks)))
	}

	a.logger.Info("discovery complete", "storefront", storefront, "tracks", len(set.tracks))

	if a.regions != nil && len(set.tracks) > 0 {
		a.attachRegions(ctx, set.tracks, progress)
	}
	return set.tracks
}

func (a *Aggregator) runStrategy(ctx context.Context, s strategy, storefront string, set *discoverySet, progress chan<- ProgressUpdate) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("discovery strategy panicked", "strategy", s.phase, "panic", r)
		}
	}()
	s.run(ctx, storefront, set, progress)
}

// isolate runs fn for a single source and turns a panic into a logged skip.
func (a *Aggregator) isolate(source string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("discovery source panicked", "source", source, "panic", r)
		}
	}()
	fn()
}

func (a *Aggregator) playlists(ctx context.Context, phase Phase, ids []string, storefront string, set *discoverySet, progress chan<- ProgressUpdate) {
	for i, id := range ids {
		sendProgress(progress, sourceUpdate(phase, i+1, len(ids), "playlist "+id))
		a.isolate("playlist:"+id, func() {
			raw, err := a.catalog.FetchPlaylistTracks(ctx, id, storefront, a.cfg.PlaylistTrackLimit, 0)
			if err != nil {
				a.logger.Warn("playlist fetch failed", "playlist", id, "partial", len(raw), "error", err)
			}
			n := set.add(raw)
			a.logger.Debug("playlist crawled", "playlist", id, "tracks", len(raw), "spatial", n)
		})
	}
}

func (a *Aggregator) spatialPlaylists(ctx context.Context, storefront string, set *discoverySet, progress chan<- ProgressUpdate) {
	a.playlists(ctx, DiscoverSpatialPlaylists, a.cfg.SpatialPlaylists, storefront, set, progress)
}

func (a *Aggregator) newMusicPlaylists(ctx context.Context, storefront string, set *discoverySet, progress chan<- ProgressUpdate) {
	ids := make([]string, 0, len(a.cfg.NewMusicPlaylists)+len(a.cfg.ChartPlaylists))
	ids = append(ids, a.cfg.NewMusicPlaylists...)
	ids = append(ids, a.cfg.ChartPlaylists...)
	a.playlists(ctx, DiscoverNewMusic, ids, storefront, set, progress)
}

func (a *Aggregator) chartAlbums(ctx context.Context, storefront string, set *discoverySet, progress chan<- ProgressUpdate) {
	albums, err := a.catalog.FetchChartAlbums(ctx, storefront, a.cfg.ChartAlbumLimit)
	if err != nil {
		a.logger.Warn("chart fetch failed", "error", err)
		return
	}

	for i, album := range albums {
		sendProgress(progress, sourceUpdate(DiscoverChartAlbums, i+1, len(albums), album.Name))
		a.isolate("album:"+album.ID, func() {
			raw, err := a.catalog.FetchAlbumTracks(ctx, album.ID, storefront)
			if err != nil {
				a.logger.Warn("album fetch failed", "album", album.ID, "error", err)
				return
			}
			set.add(raw)
		})
	}
}

// SearchTerms returns the configured fixed terms followed by the yearly terms formatted with year.
func (a *Aggregator) SearchTerms(year int) []string {
	terms := make([]string, 0, len(a.cfg.SearchTerms)+len(a.cfg.YearlySearchTerms))
	terms = append(terms, a.cfg.SearchTerms...)
	for _, pattern := range a.cfg.YearlySearchTerms {
		terms = append(terms, fmt.Sprintf(pattern, year))
	}
	return terms
}

func (a *Aggregator) search(ctx context.Context, storefront string, set *discoverySet, progress chan<- ProgressUpdate) {
	terms := a.SearchTerms(a.now().Year())
	for i, term := range terms {
		sendProgress(progress, sourceUpdate(DiscoverSearch, i+1, len(terms), fmt.Sprintf("search %q", term)))
		a.isolate("search:"+term, func() {
			raw, err := a.catalog.SearchTracks(ctx, storefront, term, a.cfg.SearchLimit)
			if err != nil {
				a.logger.Warn("search failed", "term", term, "error", err)
				return
			}
			set.add(raw)
		})
	}
}

// attachRegions sets Regions on tracks that received at least one record. Tracks with no
// records keep a nil slice so stored availability is left alone.
func (a *Aggregator) attachRegions(ctx context.Context, tracks []models.DiscoveredTrack, progress chan<- ProgressUpdate) {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ExternalID
	}

	sendProgress(progress, regionsUpdate(len(ids), len(a.regions.storefronts)))
	availability := a.regions.CheckAvailability(ctx, ids, nil)

	for i := range tracks {
		if records, ok := availability[tracks[i].ExternalID]; ok && len(records) > 0 {
			tracks[i].Regions = records
		}
	}
}
