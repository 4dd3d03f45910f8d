package report

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"ccm_server/core/domain"
	"ccm_server/core/port/out"
	"ccm_server/pkg/apperr"
)

// DatasetPipeline is the template every dataset variant implements:
// load, validate, transform, serialize, differing only in the steps.
type DatasetPipeline interface {
	ID() string
	Build(ctx context.Context, branchID int) (data any, recordCount int, err error)
}

func validationError(code, format string, args ...any) *apperr.AppError {
	return apperr.New(code, fmt.Sprintf(format, args...), http.StatusInternalServerError)
}

// ---------------------------------------------------------------------------
// branch_summary
// ---------------------------------------------------------------------------

type branchSummaryPipeline struct {
	source out.ReportSource
}

func (p *branchSummaryPipeline) ID() string { return domain.DatasetBranchSummary }

func (p *branchSummaryPipeline) Build(ctx context.Context, branchID int) (any, int, error) {
	rows, err := p.source.BranchSummaries(ctx, branchID)
	if err != nil {
		return nil, 0, apperr.DBConnectionFailed(err)
	}
	if len(rows) == 0 {
		return nil, 0, validationError("dataset_missing_rows", "dataset %s produced no rows", p.ID())
	}

	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		if row.District == "" {
			return nil, 0, validationError("missing_required_fields", "row %d of %s lacks a district", i, p.ID())
		}
		if row.TotalMissionaries < 0 || row.TotalMissionaries > 500 {
			return nil, 0, validationError("invalid_total_missionaries", "row %d of %s has total %d", i, p.ID(), row.TotalMissionaries)
		}
		key := fmt.Sprintf("%d|%s", row.BranchID, row.District)
		if seen[key] {
			return nil, 0, validationError("duplicate_records", "duplicate district %q in %s", row.District, p.ID())
		}
		seen[key] = true
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].District < rows[j].District })
	return rows, len(rows), nil
}

// ---------------------------------------------------------------------------
// district_kpis
// ---------------------------------------------------------------------------

type districtKPIPipeline struct {
	source out.ReportSource
}

func (p *districtKPIPipeline) ID() string { return domain.DatasetDistrictKPIs }

func (p *districtKPIPipeline) Build(ctx context.Context, branchID int) (any, int, error) {
	rows, err := p.source.DistrictKPIs(ctx, branchID)
	if err != nil {
		return nil, 0, apperr.DBConnectionFailed(err)
	}
	if len(rows) == 0 {
		return nil, 0, validationError("dataset_missing_rows", "dataset %s produced no rows", p.ID())
	}

	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		if row.District == "" || row.Metric == "" {
			return nil, 0, validationError("missing_required_fields", "row %d of %s lacks district or metric", i, p.ID())
		}
		if row.Value < 0 || row.Value > 500 {
			return nil, 0, validationError("invalid_kpi_value", "KPI %q out of range in row %d", row.Metric, i)
		}
		key := fmt.Sprintf("%d|%s|%s", row.BranchID, row.District, row.Metric)
		if seen[key] {
			return nil, 0, validationError("duplicate_records", "duplicate KPI %q for district %q", row.Metric, row.District)
		}
		seen[key] = true
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].District != rows[j].District {
			return rows[i].District < rows[j].District
		}
		return rows[i].Metric < rows[j].Metric
	})
	return rows, len(rows), nil
}

// ---------------------------------------------------------------------------
// upcoming_arrivals
// ---------------------------------------------------------------------------

type upcomingArrivalsPipeline struct {
	source out.ReportSource
	window time.Duration
	now    func() time.Time
}

func (p *upcomingArrivalsPipeline) ID() string { return domain.DatasetUpcomingArrivals }

func (p *upcomingArrivalsPipeline) Build(ctx context.Context, branchID int) (any, int, error) {
	from := p.now()
	rows, err := p.source.UpcomingArrivals(ctx, branchID, from, from.Add(p.window))
	if err != nil {
		return nil, 0, apperr.DBConnectionFailed(err)
	}

	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		if row.District == "" || row.ArrivalDate == "" {
			return nil, 0, validationError("missing_required_fields", "row %d of %s lacks district or arrival date", i, p.ID())
		}
		if row.MissionariesCount < 0 || row.MissionariesCount > 200 {
			return nil, 0, validationError("invalid_missionaries_count", "row %d of %s has count %d", i, p.ID(), row.MissionariesCount)
		}
		key := row.District + "|" + row.ArrivalDate
		if seen[key] {
			return nil, 0, validationError("duplicate_records", "duplicate arrival for %q on %s", row.District, row.ArrivalDate)
		}
		seen[key] = true
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ArrivalDate != rows[j].ArrivalDate {
			return rows[i].ArrivalDate < rows[j].ArrivalDate
		}
		return rows[i].District < rows[j].District
	})
	return rows, len(rows), nil
}

// ---------------------------------------------------------------------------
// upcoming_birthdays
// ---------------------------------------------------------------------------

type upcomingBirthdaysPipeline struct {
	source out.ReportSource
	window time.Duration
	now    func() time.Time
}

func (p *upcomingBirthdaysPipeline) ID() string { return domain.DatasetUpcomingBirthdays }

func (p *upcomingBirthdaysPipeline) Build(ctx context.Context, branchID int) (any, int, error) {
	from := p.now()
	rows, err := p.source.UpcomingBirthdays(ctx, branchID, from, from.Add(p.window))
	if err != nil {
		return nil, 0, apperr.DBConnectionFailed(err)
	}

	for i, row := range rows {
		if row.MissionaryName == "" || row.Birthday == "" {
			return nil, 0, validationError("missing_required_fields", "row %d of %s lacks name or birthday", i, p.ID())
		}
	}

	// Group by calendar position, stable by treatment then name within a day.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Birthday != rows[j].Birthday {
			return rows[i].Birthday < rows[j].Birthday
		}
		if rows[i].Treatment != rows[j].Treatment {
			return rows[i].Treatment < rows[j].Treatment
		}
		return rows[i].MissionaryName < rows[j].MissionaryName
	})
	return rows, len(rows), nil
}
