package report

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"ccm_server/core/domain"
	"ccm_server/core/port/in"
	"ccm_server/core/port/out"
	"ccm_server/pkg/apperr"
	"ccm_server/pkg/logger"
)

// currentGeneration is the cache-key segment used when the caller does not pin
// a generation date.
const currentGeneration = "current"

// Service serves the aggregated datasets cache-aside. Keys follow the
// canonical "<dataset_id>:<branch_id>:<generation_date>" form; a sync
// completion invalidates every dataset of the affected branch and generation.
type Service struct {
	cache           out.ReportCache
	pipelines       map[string]DatasetPipeline
	allowedBranches map[int]bool
	defaultBranch   int
	ttl             time.Duration
	now             func() time.Time
}

var _ in.ReportService = (*Service)(nil)

func NewService(source out.ReportSource, cache out.ReportCache, allowedBranches []int, defaultBranch int, ttl time.Duration, upcomingWindow time.Duration) *Service {
	now := time.Now
	pipelines := map[string]DatasetPipeline{
		domain.DatasetBranchSummary:     &branchSummaryPipeline{source: source},
		domain.DatasetDistrictKPIs:      &districtKPIPipeline{source: source},
		domain.DatasetUpcomingArrivals:  &upcomingArrivalsPipeline{source: source, window: upcomingWindow, now: now},
		domain.DatasetUpcomingBirthdays: &upcomingBirthdaysPipeline{source: source, window: upcomingWindow, now: now},
	}

	allowed := make(map[int]bool, len(allowedBranches))
	for _, id := range allowedBranches {
		allowed[id] = true
	}

	return &Service{
		cache:           cache,
		pipelines:       pipelines,
		allowedBranches: allowed,
		defaultBranch:   defaultBranch,
		ttl:             ttl,
		now:             now,
	}
}

func (s *Service) Dataset(ctx context.Context, datasetID string, branchID int, generationDate string) (*domain.DatasetResult, error) {
	pipeline, ok := s.pipelines[datasetID]
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("dataset %q", datasetID))
	}

	branch := branchID
	if branch == 0 {
		branch = s.defaultBranch
	}
	if len(s.allowedBranches) > 0 && !s.allowedBranches[branch] {
		return nil, apperr.InvalidBranch(branch)
	}

	if generationDate == "" {
		generationDate = currentGeneration
	}
	key := cacheKey(datasetID, branch, generationDate)

	if s.ttl > 0 {
		if result, ok := s.cachedResult(ctx, key); ok {
			logger.Debug("[ReportService] cache hit for %s", key)
			return result, nil
		}
	}

	start := s.now()
	data, count, err := pipeline.Build(ctx, branch)
	if err != nil {
		return nil, err
	}

	result := &domain.DatasetResult{
		Metadata: domain.DatasetMetadata{
			DatasetID:      datasetID,
			GenerationDate: generationDate,
			GeneratedAt:    start.UTC(),
			RecordCount:    count,
			BranchID:       branch,
			DurationMs:     time.Since(start).Milliseconds(),
			CacheKey:       key,
			MessageID:      uuid.NewString(),
		},
		Data: data,
	}

	if s.ttl > 0 {
		payload, err := json.Marshal(result)
		if err != nil {
			logger.Warn("[ReportService] could not serialize %s for caching: %v", key, err)
		} else if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
			logger.Warn("[ReportService] could not cache %s: %v", key, err)
		}
	}

	logger.Info("[ReportService] built %s records=%d duration_ms=%d", key, count, result.Metadata.DurationMs)
	return result, nil
}

// HandleDatasetInvalidated is the bus subscriber that drops every cached
// dataset of the affected branch and generation, including the floating
// "current" entries.
func (s *Service) HandleDatasetInvalidated(ctx context.Context, payload any) error {
	event, ok := payload.(domain.DatasetInvalidated)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}

	for datasetID := range s.pipelines {
		for _, generation := range []string{event.GenerationDate, currentGeneration} {
			key := cacheKey(datasetID, event.BranchID, generation)
			if err := s.cache.Invalidate(ctx, key); err != nil {
				logger.Warn("[ReportService] could not invalidate %s: %v", key, err)
			}
		}
	}

	logger.Info("[ReportService] invalidated datasets for branch=%d generation=%s", event.BranchID, event.GenerationDate)
	return nil
}

// CacheMetrics exposes the cumulative cache counters.
func (s *Service) CacheMetrics() out.CacheMetrics {
	return s.cache.Metrics()
}

func (s *Service) cachedResult(ctx context.Context, key string) (*domain.DatasetResult, bool) {
	payload, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("[ReportService] cache read for %s failed: %v", key, err)
		return nil, false
	}
	if !hit {
		return nil, false
	}

	var result domain.DatasetResult
	if err := json.Unmarshal(payload, &result); err != nil {
		logger.Warn("[ReportService] corrupt cache entry %s: %v", key, err)
		if err := s.cache.Invalidate(ctx, key); err != nil {
			logger.Warn("[ReportService] could not drop corrupt entry %s: %v", key, err)
		}
		return nil, false
	}
	result.Metadata.CacheHit = true
	return &result, true
}

func cacheKey(datasetID string, branchID int, generationDate string) string {
	return fmt.Sprintf("%s:%d:%s", datasetID, branchID, generationDate)
}
