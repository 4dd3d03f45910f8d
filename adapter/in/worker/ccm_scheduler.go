// Package worker runs the periodic mailbox processing.
package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"ccm_server/core/port/in"
	"ccm_server/pkg/logger"
)

// Scheduler triggers the ingestion cycle on a cron spec. A tick that fires
// while the previous cycle is still running is skipped.
type Scheduler struct {
	service in.IngestService
	spec    string
	cron    *cron.Cron
	running atomic.Bool
}

func NewScheduler(service in.IngestService, spec string) *Scheduler {
	return &Scheduler{
		service: service,
		spec:    spec,
		cron:    cron.New(),
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.tick)
	if err != nil {
		return err
	}
	s.cron.Start()
	logger.Info("[Scheduler] started with spec %q", s.spec)
	return nil
}

// Stop halts the cron loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("[Scheduler] stopped")
}

// RunOnce triggers one immediate cycle, used by the worker run mode at
// startup.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.run(ctx)
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		logger.Warn("[Scheduler] previous cycle still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	run, err := s.service.ProcessIncoming(ctx)
	if err != nil {
		logger.Error("[Scheduler] cycle failed: %v", err)
		return
	}
	logger.Info("[Scheduler] cycle done processed=%d errors=%d duration=%.2fs",
		run.Processed, run.Errors, run.DurationSeconds)
}
