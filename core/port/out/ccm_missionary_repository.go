package out

import (
	"context"

	"ccm_server/core/domain"
)

// MissionaryRepository persists normalized spreadsheet rows.
type MissionaryRepository interface {
	// InsertNewBatch inserts the records whose id does not already exist,
	// all inside a single transaction. Duplicates are skipped, never
	// updated. Returns how many rows were inserted and skipped.
	InsertNewBatch(ctx context.Context, records []*domain.MissionaryRecord) (inserted, skipped int, err error)

	// Ping verifies the connection is usable.
	Ping(ctx context.Context) error
}
