// Package tasks discovers spatial-audio tracks and keeps the store in step with the catalog.
//
// # Discovery
//
// [Aggregator.DiscoverAll] runs four strategies in a fixed order:
//
//  1. curated spatial-audio playlists
//  2. new-music and chart playlists
//  3. chart albums, fetched track by track
//  4. keyword search, including terms formatted with the current year
//
// Every track is classified and non-spatial ones are dropped. The first occurrence of a catalog id
// wins. A failing source is logged and skipped. With a [RegionChecker] configured, tracks also
// carry their availability in each storefront.
//
// # Synchronization
//
// [SyncEngine.Sync] upserts discovered tracks by catalog id in batched transactions, touching
// catalog-owned columns only. [SyncEngine.CheckSilentUpgrades] re-fetches Stereo tracks to catch
// ones that gained Spatial Audio or Dolby Atmos after release. [CreditsJob.Run] scrapes engineer
// credits for a handful of tracks at a time.
//
// # Scheduling
//
// [Scheduler] runs each [Job] on its own interval and records a [models.JobRun] per invocation.
// A job never overlaps with itself.
//
// # Progress Reporting
//
// Long operations accept an optional progress channel. Updates are sent with select/default so a
// slow or absent reader never blocks the work.
package tasks
