package in

import (
	"context"

	"ccm_server/core/domain"
)

// SyncService imports spreadsheet files from a generation folder into the
// database.
type SyncService interface {
	// SyncGeneration processes every spreadsheet under folderID for the given
	// generation date, resuming from saved state unless force restarts from
	// scratch. At most one sync per generation date runs at a time.
	SyncGeneration(ctx context.Context, generationDate, folderID string, force bool) (*domain.SyncReport, error)
}
