package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/reelx/internal/models"
)

// CatalogCacheRepository stores raw detail payloads so repeated lookups skip the network.
//
// Entries are never refreshed in place: a stale entry misses and the caller overwrites it.
type CatalogCacheRepository struct {
	db *sql.DB
}

// NewCatalogCacheRepository creates a new [CatalogCacheRepository] with the given database connection
func NewCatalogCacheRepository(db *sql.DB) *CatalogCacheRepository {
	return &CatalogCacheRepository{db: db}
}

// GetDetail returns the cached payload if it is younger than maxAge. A non-positive maxAge
// accepts any age.
func (r *CatalogCacheRepository) GetDetail(mediaType models.MediaType, id int64, maxAge time.Duration) ([]byte, bool, error) {
	query := `SELECT payload, fetched_at FROM catalog_cache WHERE media_type = ? AND item_id = ?`

	var (
		payload   string
		fetchedAt time.Time
	)
	err := r.db.QueryRow(query, string(mediaType), id).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query catalog cache: %w", err)
	}

	if maxAge > 0 && now().Sub(fetchedAt) > maxAge {
		return nil, false, nil
	}

	return []byte(payload), true, nil
}

// PutDetail inserts or replaces the payload for one item.
func (r *CatalogCacheRepository) PutDetail(mediaType models.MediaType, id int64, payload []byte) error {
	query := `
		INSERT INTO catalog_cache (media_type, item_id, payload, fetched_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(media_type, item_id) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at
	`

	if _, err := r.db.Exec(query, string(mediaType), id, string(payload), now()); err != nil {
		return fmt.Errorf("failed to cache %s %d: %w", mediaType, id, err)
	}
	return nil
}

// Prune deletes entries older than maxAge and returns how many were removed.
func (r *CatalogCacheRepository) Prune(maxAge time.Duration) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM catalog_cache WHERE fetched_at < ?`, now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to prune catalog cache: %w", err)
	}
	return result.RowsAffected()
}

// Count returns the number of cached entries.
func (r *CatalogCacheRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM catalog_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count catalog cache: %w", err)
	}
	return n, nil
}
