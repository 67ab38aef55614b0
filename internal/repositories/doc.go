// Package repositories implements SQLite persistence for the client's local state.
//
// Implementations:
//   - [KVRepository] : key/value pairs in kv_store, backing the credential store
//     (satisfies session.KeyValue)
//   - [CatalogCacheRepository] : raw catalog detail payloads in catalog_cache with a
//     read-time TTL (satisfies services.DetailCacher)
//
// Tables are created by the embedded migrations in the shared package. Timestamps are
// written in UTC.
package repositories
