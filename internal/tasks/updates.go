package tasks

import (
	"fmt"

	"github.com/desertthunder/selecta/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	DiscoverSpatialPlaylists Phase = iota
	DiscoverNewMusic
	DiscoverChartAlbums
	DiscoverSearch
	CheckRegions
	SyncTracks
	CheckUpgrades
	ScrapeCredits
)

func (p Phase) String() string {
	switch p {
	case DiscoverSpatialPlaylists:
		return "spatial_playlists"
	case DiscoverNewMusic:
		return "new_music"
	case DiscoverChartAlbums:
		return "chart_albums"
	case DiscoverSearch:
		return "search"
	case CheckRegions:
		return "regions"
	case SyncTracks:
		return "sync"
	case CheckUpgrades:
		return "upgrades"
	case ScrapeCredits:
		return "credits"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func sourceUpdate(phase Phase, step, total int, source string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, source),
	}
}

func strategyDoneUpdate(phase Phase, found int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Message: fmt.Sprintf("%s: %d spatial tracks so far", phase, found),
		Data:    found,
	}
}

func regionsUpdate(tracks, storefronts int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckRegions,
		Total:   tracks,
		Message: fmt.Sprintf("Checking %d tracks across %d storefronts...", tracks, storefronts),
	}
}

func syncBatchUpdate(step, total int, result SyncResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] batch committed (%d added, %d updated)", step, total, result.Added, result.Updated),
		Data:    result,
	}
}

func upgradeUpdate(result UpgradeResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckUpgrades,
		Step:    result.Checked,
		Message: fmt.Sprintf("%d checked, %d upgraded", result.Checked, result.Upgraded),
		Data:    result,
	}
}

func creditsUpdate(step, total int, track *models.Track, found int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScrapeCredits,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s (%d credits)", step, total, track.Artist, track.Title, found),
	}
}
