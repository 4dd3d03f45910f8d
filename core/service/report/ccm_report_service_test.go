package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"ccm_server/adapter/out/cache"
	"ccm_server/core/domain"
	"ccm_server/pkg/apperr"
)

type fakeSource struct {
	summaries []domain.BranchSummary
	kpis      []domain.DistrictKPI
	arrivals  []domain.UpcomingArrival
	birthdays []domain.UpcomingBirthday

	err   error
	calls int
}

func (f *fakeSource) BranchSummaries(_ context.Context, _ int) ([]domain.BranchSummary, error) {
	f.calls++
	return f.summaries, f.err
}

func (f *fakeSource) DistrictKPIs(_ context.Context, _ int) ([]domain.DistrictKPI, error) {
	f.calls++
	return f.kpis, f.err
}

func (f *fakeSource) UpcomingArrivals(_ context.Context, _ int, _, _ time.Time) ([]domain.UpcomingArrival, error) {
	f.calls++
	return f.arrivals, f.err
}

func (f *fakeSource) UpcomingBirthdays(_ context.Context, _ int, _, _ time.Time) ([]domain.UpcomingBirthday, error) {
	f.calls++
	return f.birthdays, f.err
}

func newTestService(t *testing.T, source *fakeSource) (*Service, *cache.MemoryCache) {
	t.Helper()
	c := cache.NewMemoryCache(100)
	t.Cleanup(c.Close)
	svc := NewService(source, c, []int{14}, 14, time.Minute, 14*24*time.Hour)
	return svc, c
}

func summaryRows() []domain.BranchSummary {
	return []domain.BranchSummary{
		{BranchID: 14, District: "District 10B", TotalMissionaries: 12},
		{BranchID: 14, District: "District 10A", TotalMissionaries: 10},
	}
}

func TestDatasetCacheAside(t *testing.T) {
	source := &fakeSource{summaries: summaryRows()}
	svc, _ := newTestService(t, source)
	ctx := context.Background()

	first, err := svc.Dataset(ctx, domain.DatasetBranchSummary, 14, "20250110")
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	if first.Metadata.CacheHit {
		t.Fatal("first build reported as cache hit")
	}
	if first.Metadata.RecordCount != 2 {
		t.Fatalf("record count = %d, want 2", first.Metadata.RecordCount)
	}
	if first.Metadata.CacheKey != "branch_summary:14:20250110" {
		t.Fatalf("cache key = %q", first.Metadata.CacheKey)
	}

	second, err := svc.Dataset(ctx, domain.DatasetBranchSummary, 14, "20250110")
	if err != nil {
		t.Fatalf("Dataset (cached): %v", err)
	}
	if !second.Metadata.CacheHit {
		t.Fatal("second read should come from the cache")
	}
	if source.calls != 1 {
		t.Fatalf("source called %d times, want 1", source.calls)
	}
}

func TestDatasetSortsRows(t *testing.T) {
	source := &fakeSource{summaries: summaryRows()}
	svc, _ := newTestService(t, source)

	result, err := svc.Dataset(context.Background(), domain.DatasetBranchSummary, 14, "20250110")
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	rows, ok := result.Data.([]domain.BranchSummary)
	if !ok {
		t.Fatalf("data type = %T", result.Data)
	}
	if rows[0].District != "District 10A" || rows[1].District != "District 10B" {
		t.Fatalf("rows not sorted by district: %q, %q", rows[0].District, rows[1].District)
	}
}

func TestDatasetUnknownID(t *testing.T) {
	svc, _ := newTestService(t, &fakeSource{})

	_, err := svc.Dataset(context.Background(), "nope", 14, "")
	if apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("code = %q, want %q", apperr.CodeOf(err), apperr.CodeNotFound)
	}
}

func TestDatasetInvalidBranch(t *testing.T) {
	svc, _ := newTestService(t, &fakeSource{summaries: summaryRows()})

	_, err := svc.Dataset(context.Background(), domain.DatasetBranchSummary, 99, "")
	if apperr.CodeOf(err) != apperr.CodeInvalidBranch {
		t.Fatalf("code = %q, want %q", apperr.CodeOf(err), apperr.CodeInvalidBranch)
	}
}

func TestDatasetDefaultBranchAndCurrentGeneration(t *testing.T) {
	source := &fakeSource{summaries: summaryRows()}
	svc, _ := newTestService(t, source)

	result, err := svc.Dataset(context.Background(), domain.DatasetBranchSummary, 0, "")
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	if result.Metadata.BranchID != 14 {
		t.Fatalf("branch = %d, want default 14", result.Metadata.BranchID)
	}
	if result.Metadata.CacheKey != "branch_summary:14:current" {
		t.Fatalf("cache key = %q", result.Metadata.CacheKey)
	}
}

func TestDatasetSourceFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("connection refused")}
	svc, _ := newTestService(t, source)

	_, err := svc.Dataset(context.Background(), domain.DatasetBranchSummary, 14, "")
	if apperr.CodeOf(err) != apperr.CodeDBConnectionFailed {
		t.Fatalf("code = %q, want %q", apperr.CodeOf(err), apperr.CodeDBConnectionFailed)
	}
}

func TestDatasetValidationCodes(t *testing.T) {
	cases := []struct {
		name   string
		source *fakeSource
		id     string
		code   string
	}{
		{
			name:   "summary without rows",
			source: &fakeSource{},
			id:     domain.DatasetBranchSummary,
			code:   "dataset_missing_rows",
		},
		{
			name: "summary total out of range",
			source: &fakeSource{summaries: []domain.BranchSummary{
				{BranchID: 14, District: "District 10A", TotalMissionaries: 900},
			}},
			id:   domain.DatasetBranchSummary,
			code: "invalid_total_missionaries",
		},
		{
			name: "summary duplicate district",
			source: &fakeSource{summaries: []domain.BranchSummary{
				{BranchID: 14, District: "District 10A", TotalMissionaries: 10},
				{BranchID: 14, District: "District 10A", TotalMissionaries: 11},
			}},
			id:   domain.DatasetBranchSummary,
			code: "duplicate_records",
		},
		{
			name: "kpi value out of range",
			source: &fakeSource{kpis: []domain.DistrictKPI{
				{BranchID: 14, District: "District 10A", Metric: "total", Value: -1},
			}},
			id:   domain.DatasetDistrictKPIs,
			code: "invalid_kpi_value",
		},
		{
			name: "arrival count out of range",
			source: &fakeSource{arrivals: []domain.UpcomingArrival{
				{District: "District 10A", ArrivalDate: "2025-01-10", MissionariesCount: 300},
			}},
			id:   domain.DatasetUpcomingArrivals,
			code: "invalid_missionaries_count",
		},
		{
			name: "birthday missing name",
			source: &fakeSource{birthdays: []domain.UpcomingBirthday{
				{Birthday: "2025-01-12"},
			}},
			id:   domain.DatasetUpcomingBirthdays,
			code: "missing_required_fields",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestService(t, tc.source)
			_, err := svc.Dataset(context.Background(), tc.id, 14, "")
			if apperr.CodeOf(err) != tc.code {
				t.Fatalf("code = %q, want %q", apperr.CodeOf(err), tc.code)
			}
		})
	}
}

func TestDatasetAllowsEmptyArrivals(t *testing.T) {
	svc, _ := newTestService(t, &fakeSource{})

	result, err := svc.Dataset(context.Background(), domain.DatasetUpcomingArrivals, 14, "")
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	if result.Metadata.RecordCount != 0 {
		t.Fatalf("record count = %d, want 0", result.Metadata.RecordCount)
	}
}

func TestHandleDatasetInvalidated(t *testing.T) {
	source := &fakeSource{summaries: summaryRows()}
	svc, _ := newTestService(t, source)
	ctx := context.Background()

	if _, err := svc.Dataset(ctx, domain.DatasetBranchSummary, 14, "20250110"); err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	if _, err := svc.Dataset(ctx, domain.DatasetBranchSummary, 14, ""); err != nil {
		t.Fatalf("Dataset current: %v", err)
	}

	err := svc.HandleDatasetInvalidated(ctx, domain.DatasetInvalidated{GenerationDate: "20250110", BranchID: 14})
	if err != nil {
		t.Fatalf("HandleDatasetInvalidated: %v", err)
	}

	result, err := svc.Dataset(ctx, domain.DatasetBranchSummary, 14, "20250110")
	if err != nil {
		t.Fatalf("Dataset after invalidation: %v", err)
	}
	if result.Metadata.CacheHit {
		t.Fatal("invalidated dataset served from cache")
	}
	if source.calls != 3 {
		t.Fatalf("source called %d times, want 3", source.calls)
	}
}

func TestHandleDatasetInvalidatedBadPayload(t *testing.T) {
	svc, _ := newTestService(t, &fakeSource{})
	if err := svc.HandleDatasetInvalidated(context.Background(), "not an event"); err == nil {
		t.Fatal("expected error for unexpected payload type")
	}
}
