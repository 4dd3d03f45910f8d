package out

import (
	"context"

	"ccm_server/core/domain"
)

// SyncStateStore persists per-generation sync progress so an interrupted run
// can resume from its continuation token.
type SyncStateStore interface {
	// Load returns the state for a generation date, or nil when none exists.
	Load(ctx context.Context, generationDate string) (*domain.SyncState, error)

	// Save atomically replaces the stored state.
	Save(ctx context.Context, state *domain.SyncState) error

	// Delete removes the state. Deleting a missing state is not an error.
	Delete(ctx context.Context, generationDate string) error
}
