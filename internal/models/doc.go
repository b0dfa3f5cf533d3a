// Package models defines the entities moved between the catalog, the discovery pipeline, and storage.
//
// The package contains two categories of types:
//
// 1. Transient values produced by a discovery pass
//   - [DiscoveredTrack] : a catalog track classified as spatial, with its metadata
//   - [RegionRecord] : per-storefront availability attached to a discovered track
//   - [Credit] : an engineer credit scraped from a track page
//
// 2. Persistent entities backed by SQLite
//   - [Track] : the reconciled track row, split into catalog-owned and community-owned fields
//   - [Engineer] / [TrackCredit] : credits written by the credits job
//   - [JobRun] : history of scheduled and manual job invocations
package models
