// Package services talks to the outside world: the Apple Music catalog API and public track pages.
//
// # Credentials
//
// [NewCredentialProvider] returns an [oauth2.TokenSource] yielding the developer token. Tokens are
// ES256 JWTs signed with a MusicKit key ([DeveloperTokenSigner]) and cached until an hour before
// expiry, or a static token when one is configured.
//
// # Catalog
//
// [CatalogClient] wraps the catalog endpoints used by discovery. Responses are kept as raw JSON
// ([RawTrack]) and read with gjson, since the API returns the same attributes in several shapes.
// [ClassifySpatialSupport] decides whether a track carries Spatial Audio or Dolby Atmos.
//
// Failures never panic or abort callers: methods return a nil slice and an error wrapping
// [shared.ErrAPIRequest] or [shared.ErrNotAuthenticated] that callers treat as "no data".
//
// # Credits
//
// [CreditsScraper] fetches a track page behind a process-wide [RequestGate] and runs an ordered
// list of [CreditParser] strategies over it. The first strategy yielding credits wins.
package services
