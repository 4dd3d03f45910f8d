package out

import (
	"context"
	"time"
)

// CacheMetrics are the cumulative counters every cache variant maintains.
type CacheMetrics struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Writes        int64 `json:"writes"`
	Invalidations int64 `json:"invalidations"`
	Expirations   int64 `json:"expirations"`
}

// ReportCache is the strategy interface for dataset caching. Keys use the
// canonical form "<dataset_id>:<branch_id>:<generation_date>".
type ReportCache interface {
	// Get returns the cached payload and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a payload with an absolute expiration of now+ttl.
	// A non-positive ttl discards the write.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate removes a single key.
	Invalidate(ctx context.Context, key string) error

	// InvalidatePrefix removes every key starting with prefix.
	InvalidatePrefix(ctx context.Context, prefix string) error

	// Metrics returns a snapshot of the counters.
	Metrics() CacheMetrics
}
