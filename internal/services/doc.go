// Package services implements the transport layer of the reelx client and the API clients built on it.
//
// # Request Pipeline
//
// [Pipeline] sends a [Request] to the backend. It attaches the bearer credential read from
// the credential store, stamps an X-Request-ID, applies an optional client-side rate limit and
// reads the whole body. It does not retry.
//
// Every failure takes one of two shapes:
//   - [*APIError] : Status is zero for network failures (wraps [shared.ErrNetwork]),
//     otherwise the HTTP status with a message taken from the body's detail, message or
//     error field, the raw text, or the status line (wraps [shared.ErrAPIRequest])
//   - an error wrapping [shared.ErrCancelled] when the context ends first
//
// # Session Refresh
//
// [Coordinator] wraps the pipeline and satisfies the same [Sender] interface. Each logical
// call moves through dispatch, refreshing, done and logged-out states:
//
//   - a 401 on a call that has not been retried starts a refresh
//   - concurrent refreshes collapse into one flight (golang.org/x/sync/singleflight)
//   - a call whose token was already replaced by another caller's refresh retries directly
//   - a failed refresh (or a missing refresh token) clears the store, fires OnLogout once
//     and fails the call with [shared.ErrSessionExpired]
//   - a 401 after the retry, or any other error, is returned unchanged
//
// Refresh strategies implement [Refresher]: [BackendRefresher] posts to the backend's refresh
// endpoint and [OAuth2Refresher] uses the standard refresh-token grant.
//
// # API Clients
//
//   - [CatalogService] : trending, now playing, title and person search, discovery, detail
//   - [WatchlistService] : watchlists, items, status changes and reordering
//   - [RoomService] : rooms, members, the voted movie queue
//   - [AuthService] : login with optional MFA, registration, email verification, password reset
package services
