package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler runs an ingestion pass on start, then every interval. Extra passes
// requested through TriggerRun are coalesced into one pending run.
type Scheduler struct {
	runner   RunnerInterface
	interval time.Duration
	trigger  chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewScheduler(runner RunnerInterface, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		runner:   runner,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce("startup")

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.runOnce("interval")
			case <-s.trigger:
				s.runOnce("trigger")
			}
		}
	}()
}

// Stop cancels the pass in progress and waits for it to wind down.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// TriggerRun requests an extra pass. It returns false when one is already pending.
func (s *Scheduler) TriggerRun() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Scheduler) runOnce(reason string) {
	if s.ctx.Err() != nil {
		return
	}

	summary, err := s.runner.Run(s.ctx)
	if err != nil {
		slog.Error("Scheduled run failed", "reason", reason, "error", err)
		return
	}
	slog.Debug("Scheduled run finished", "reason", reason, "run_id", summary.RunID, "processed", summary.Processed)
}
