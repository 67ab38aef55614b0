package models

// Entity is implemented by collaborative records that can be edited optimistically.
//
// Key returns the stable numeric identity. MergeDisplay is called on a server copy with the
// last-known local copy and returns the server copy with any empty display-only fields
// filled in from local.
type Entity[E any] interface {
	Key() int64
	MergeDisplay(local E) E
}

// MergeCollection merges a server collection with the local one item by item.
//
// Server order and membership win; items present locally keep their known display fields.
func MergeCollection[E Entity[E]](local, server []E) []E {
	known := make(map[int64]E, len(local))
	for _, item := range local {
		known[item.Key()] = item
	}

	merged := make([]E, len(server))
	for i, item := range server {
		if prev, ok := known[item.Key()]; ok {
			merged[i] = item.MergeDisplay(prev)
		} else {
			merged[i] = item
		}
	}
	return merged
}

// keep returns server unless it is empty, in which case the local value survives.
func keep(server, local string) string {
	if server == "" {
		return local
	}
	return server
}
