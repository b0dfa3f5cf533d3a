package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/selecta/internal/models"
	"github.com/desertthunder/selecta/internal/services"
	"github.com/desertthunder/selecta/internal/shared"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// RegionChecker records whether tracks exist, and in which format, in each storefront.
type RegionChecker struct {
	catalog     TrackFetcher
	storefronts []string
	chunkSize   int
	concurrency int
	logger      *log.Logger
}

// RegionCheckerOpts configures a [RegionChecker].
type RegionCheckerOpts struct {
	Catalog     TrackFetcher
	Storefronts []string // default storefronts when CheckAvailability gets none
	ChunkSize   int
	Concurrency int
	Logger      *log.Logger
}

// NewRegionChecker creates a RegionChecker, filling unset values from [shared.DefaultConfig].
func NewRegionChecker(opts RegionCheckerOpts) *RegionChecker {
	defaults := shared.DefaultConfig().Catalog
	if len(opts.Storefronts) == 0 {
		opts.Storefronts = defaults.RegionStorefronts
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaults.RegionChunkSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &RegionChecker{
		catalog:     opts.Catalog,
		storefronts: opts.Storefronts,
		chunkSize:   opts.ChunkSize,
		concurrency: opts.Concurrency,
		logger:      shared.WithLogger(opts.Logger, "component", "regions"),
	}
}

// CheckAvailability looks ids up in every storefront, chunkSize ids per request.
//
// An id missing from a storefront's response is unavailable there. A failed request contributes no
// records for its ids in that storefront and does not affect other chunks. Records for an id are
// ordered like storefronts.
func (c *RegionChecker) CheckAvailability(ctx context.Context, ids []string, storefronts []string) map[string][]models.RegionRecord {
	if len(storefronts) == 0 {
		storefronts = c.storefronts
	}
	ids = lo.Uniq(lo.Compact(ids))
	chunks := lo.Chunk(ids, c.chunkSize)

	found := make([]map[string]models.RegionRecord, len(storefronts))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, storefront := range storefronts {
		g.Go(func() error {
			found[i] = c.checkStorefront(ctx, storefront, chunks)
			return nil
		})
	}
	_ = g.Wait()

	result := make(map[string][]models.RegionRecord, len(ids))
	for _, id := range ids {
		for i := range storefronts {
			if rec, ok := found[i][id]; ok {
				result[id] = append(result[id], rec)
			}
		}
	}
	return result
}

func (c *RegionChecker) checkStorefront(ctx context.Context, storefront string, chunks [][]string) (records map[string]models.RegionRecord) {
	records = make(map[string]models.RegionRecord)
	for n, chunk := range chunks {
		raw, err := c.fetch(ctx, storefront, chunk)
		if err != nil {
			c.logger.Warn("region chunk failed", "storefront", storefront, "chunk", n, "ids", len(chunk), "error", err)
			continue
		}

		present := lo.SliceToMap(raw, func(r services.RawTrack) (string, services.RawTrack) {
			return r.ID(), r
		})
		for _, id := range chunk {
			rec := models.RegionRecord{Storefront: storefront, Format: models.FormatStereo}
			if r, ok := present[id]; ok {
				support := services.ClassifySpatialSupport(r)
				rec.Available = true
				rec.Format = models.FormatFor(support.HasSpatial, support.HasAtmos)
			}
			records[id] = rec
		}
	}
	return records
}

func (c *RegionChecker) fetch(ctx context.Context, storefront string, ids []string) (raw []services.RawTrack, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", shared.ErrAPIRequest, r)
		}
	}()
	return c.catalog.FetchTracksByIDs(ctx, storefront, ids)
}
