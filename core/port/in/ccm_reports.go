package in

import (
	"context"

	"ccm_server/core/domain"
)

// ReportService serves the aggregated datasets, cache-aside.
type ReportService interface {
	// Dataset builds or returns the cached dataset identified by datasetID
	// for the branch and generation date.
	Dataset(ctx context.Context, datasetID string, branchID int, generationDate string) (*domain.DatasetResult, error)
}
