// Package session owns the current [models.Credential].
//
// A [Store] is the single reader/writer of the persisted token pair. It keeps the pair under
// two fixed keys of a [KeyValue] backend and broadcasts an [Event] to every subscriber on
// each Set or Clear, so independent consumers stay consistent without reading shared state.
//
// Backends:
//   - [MemoryKV] : process-local, used by tests and one-shot commands
//   - repositories.KVRepository : sqlite-backed, used by the CLI
package session
