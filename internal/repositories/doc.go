// Package repositories implements SQLite persistence for tracks, region availability, credits and job history.
//
// Every repository is built over [DBTX], so the same code runs against a *sql.DB or inside a
// transaction opened with [InTx]. Write paths that span several tables (a sync batch, one
// track's credits) open a transaction and construct their repositories from it.
//
// Key Implementations:
//   - [TrackRepository] : catalog-owned track columns, keyed by external id
//   - [RegionRepository] : per-storefront availability, replaced wholesale
//   - [CreditRepository] : engineers and their track credits
//   - [JobRunRepository] : job invocation history
package repositories
