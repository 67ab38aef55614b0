// Package tasks holds the stateful client-side engines that sit between the API clients and
// a consumer such as the CLI: paginated aggregation and optimistic mutation.
//
// # Paginated Aggregation
//
// [Pager] serves a growing, de-duplicated list of [models.ResultItem] for one fingerprint:
//
//  1. [Pager.Reset] points it at a result set and discards everything from the previous one
//  2. [Pager.LoadNext] fetches pages strictly in order, one at a time, until the reported
//     total is reached; later calls are no-ops that send no request
//  3. [Pager.Snapshot] flattens the pages, keeping the first occurrence of each ID
//
// A fetch that resolves after a Reset is dropped by generation tag even when the transport
// ignored the cancellation. A failed page moves the pager to [PagerFailed] and keeps the
// pages already merged; [Pager.Retry] re-attempts it.
//
// [FeedFetch] and [NewDiscovery] bind the catalog's listings and mood discovery to a pager.
// [Search] is the debounced text variant: it waits for a quiet period and a minimum length,
// skips a query identical to the one being served and runs the title and person
// sub-queries in parallel for every page.
//
// # Optimistic Mutation
//
// [Collection] applies a [Mutation] locally before the server confirms it. The returned
// [PendingMutation] keeps the full pre-mutation snapshot; a failed remote call restores it
// exactly, a successful one merges the server's entities without blanking known titles or
// posters.
//
//   - [WatchlistSession] : add, status change, removal, and debounced best-effort reorder
//   - [RoomSession] : add, vote, removal, with members and ranking
//
// # Progress Reporting
//
// Every engine accepts an optional channel of [ProgressUpdate]. Sends use select with
// default, so a slow consumer never blocks a fetch or a mutation.
//
// # Detaching
//
// Each engine has a Detach method. After it, results of calls still in flight are not
// applied, which is how a consumer that navigated away stops receiving state changes.
package tasks
