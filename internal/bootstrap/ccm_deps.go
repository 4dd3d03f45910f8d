// Package bootstrap wires configuration, adapters and services into the
// run modes.
package bootstrap

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"ccm_server/adapter/out/cache"
	"ccm_server/adapter/out/drive"
	"ccm_server/adapter/out/persistence"
	"ccm_server/adapter/out/provider"
	"ccm_server/adapter/out/state"
	"ccm_server/config"
	"ccm_server/core/domain"
	"ccm_server/core/port/out"
	"ccm_server/core/service/ingest"
	"ccm_server/core/service/report"
	syncsvc "ccm_server/core/service/sync"
	"ccm_server/infra/database"
	"ccm_server/internal/bus"
	"ccm_server/pkg/logger"
	"ccm_server/pkg/retry"
)

// Dependencies holds every shared component of the application.
type Dependencies struct {
	Config *config.Config

	DB    *pgxpool.Pool
	SQLDB *sqlx.DB
	Redis *redis.Client

	Mail  out.MailGateway
	Drive out.DriveStore
	Cache out.ReportCache
	State out.SyncStateStore
	Bus   *bus.Bus

	IngestService *ingest.Service
	SyncService   *syncsvc.Service
	ReportService *report.Service
}

// NewDependencies builds the full dependency graph. The returned cleanup
// closes every connection in reverse construction order.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	ctx := context.Background()

	// Database
	logger.Debug("Connecting to database...")
	pool, err := database.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.DB = pool
	cleanups = append(cleanups, pool.Close)

	sqlDB, err := database.NewSQLX(cfg.DatabaseDSN)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { _ = sqlDB.Close() })

	// Redis, only needed by the remote cache variant
	if cfg.CacheProvider == config.CacheProviderRemote {
		redisClient, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		deps.Redis = redisClient
		cleanups = append(cleanups, func() { _ = redisClient.Close() })
	}

	// Mailbox and object store
	mail, err := provider.NewMailGateway(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Mail = mail
	if closer, ok := mail.(interface{ Close() error }); ok {
		cleanups = append(cleanups, func() { _ = closer.Close() })
	}

	driveStore, err := drive.NewStore(ctx, drive.Options{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RefreshToken: cfg.GoogleRefreshToken,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Drive = driveStore

	// Sync state and cache
	stateStore, err := state.NewFileStore(cfg.StateDir)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.State = stateStore

	deps.Cache = cache.NewReportCache(cfg, deps.Redis)
	if memCache, ok := deps.Cache.(*cache.MemoryCache); ok {
		cleanups = append(cleanups, memCache.Close)
	}

	// Event bus and services
	deps.Bus = bus.New()

	retryPolicy := retry.DefaultPolicy()
	retryPolicy.MaxAttempts = cfg.RetryMaxAttempts
	deps.IngestService = ingest.NewService(deps.Mail, deps.Drive,
		cfg.MailSubjectPattern, cfg.AttachmentsFolderID, nil, retryPolicy)

	missionaryRepo := persistence.NewMissionaryAdapter(sqlDB)
	deps.SyncService = syncsvc.NewService(deps.Drive, missionaryRepo,
		stateStore, deps.Bus, cfg.BranchID)

	reportSource := persistence.NewReportAdapter(sqlDB)
	deps.ReportService = report.NewService(reportSource, deps.Cache,
		cfg.AllowedBranches, cfg.BranchID, cfg.CacheTTL,
		time.Duration(cfg.UpcomingWindow)*24*time.Hour)

	deps.Bus.Subscribe(domain.EventDatasetInvalidated, deps.ReportService.HandleDatasetInvalidated)

	logger.Info("Dependencies initialized (mail=%s cache=%s)", deps.Mail.Name(), cfg.CacheProvider)
	return deps, cleanup, nil
}
