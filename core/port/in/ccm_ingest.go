package in

import (
	"context"

	"ccm_server/core/domain"
)

// IngestService runs the weekly arrival-email pipeline.
type IngestService interface {
	// ProcessIncoming discovers unprocessed arrival emails and runs each one
	// through validation, parsing, upload and marking. Per-message failures
	// are collected, never fatal to the run.
	ProcessIncoming(ctx context.Context) (*domain.ProcessRun, error)

	// SearchMessages is a debug read-through over the mailbox.
	SearchMessages(ctx context.Context, query string) ([]*domain.EmailMessage, error)
}
