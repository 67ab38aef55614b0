// Package models defines the plain data exchanged between the reelx sync layer and its consumers.
//
// The package contains three groups of types:
//
// 1. Session data
//   - [Credential] : the access/refresh token pair owned by the credential store
//
// 2. Catalog data: read-only results from the discovery and search endpoints
//   - [Filters] : discovery parameters, reduced to a [Fingerprint] cache key
//   - [ResultItem] : one movie, show or person, unique by ID
//   - [Page] : one page of results with an optional total page count
//
// 3. Collaborative entities: multi-writer records edited optimistically
//   - [Watchlist], [WatchlistItem] : personal lists with a per-item [WatchStatus]
//   - [Room], [Member], [RoomMovie] : watch-party rooms and their voted queue
//
// Collaborative entities satisfy [Entity], which lets a server response be merged with the
// last-known local copy without regressing display-only fields. See [MergeCollection].
package models
