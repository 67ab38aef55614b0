// package repositories provides sqlite persistence for client-local state.
package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// now is the clock used for timestamps, replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

// requireAffected turns a zero-row result into notFound.
func requireAffected(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
