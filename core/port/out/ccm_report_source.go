package out

import (
	"context"
	"time"

	"ccm_server/core/domain"
)

// ReportSource loads the raw rows the dataset pipelines aggregate.
// A branchID of 0 means "all branches".
type ReportSource interface {
	BranchSummaries(ctx context.Context, branchID int) ([]domain.BranchSummary, error)
	DistrictKPIs(ctx context.Context, branchID int) ([]domain.DistrictKPI, error)
	UpcomingArrivals(ctx context.Context, branchID int, from, to time.Time) ([]domain.UpcomingArrival, error)
	UpcomingBirthdays(ctx context.Context, branchID int, from, to time.Time) ([]domain.UpcomingBirthday, error)
}
