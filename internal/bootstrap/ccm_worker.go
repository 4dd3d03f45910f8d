package bootstrap

import (
	"context"
	"time"

	"ccm_server/adapter/in/worker"
	"ccm_server/config"
	"ccm_server/pkg/logger"
)

// Worker is the scheduled-ingestion run mode.
type Worker struct {
	deps      *Dependencies
	scheduler *worker.Scheduler
	done      chan struct{}
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	return &Worker{
		deps:      deps,
		scheduler: worker.NewScheduler(deps.IngestService, cfg.SchedulerSpec),
		done:      make(chan struct{}),
	}, cleanup, nil
}

// Start runs one immediate cycle, then follows the cron spec until Stop.
func (w *Worker) Start() {
	if !w.deps.Config.SchedulerEnabled {
		logger.Info("[Worker] scheduler disabled, idling")
		<-w.done
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	w.scheduler.RunOnce(ctx)
	cancel()

	if err := w.scheduler.Start(); err != nil {
		logger.Error("[Worker] could not start scheduler: %v", err)
		return
	}
	<-w.done
}

// Stop halts the scheduler and releases Start.
func (w *Worker) Stop() {
	if w.deps.Config.SchedulerEnabled {
		w.scheduler.Stop()
	}
	close(w.done)
}

// Dependencies exposes the wired graph, used by the all-in-one run mode.
func (w *Worker) Dependencies() *Dependencies {
	return w.deps
}
