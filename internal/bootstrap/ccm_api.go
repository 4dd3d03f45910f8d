package bootstrap

import (
	"github.com/gofiber/fiber/v2"
	json "github.com/goccy/go-json"

	httpin "ccm_server/adapter/in/http"
	"ccm_server/config"
	"ccm_server/infra/middleware"
)

// NewAPI builds the Fiber application with every route registered.
func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,

		// go-json is a drop-in, faster encoding/json
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit: 10 * 1024 * 1024,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())

	httpin.NewHealthHandler(deps.DB, deps.Redis).Register(app)
	httpin.NewIngestHandler(deps.IngestService).Register(app)
	httpin.NewSyncHandler(deps.SyncService).Register(app)
	httpin.NewReportHandler(deps.ReportService).Register(app)

	return app, cleanup, nil
}
