// Package scheduler runs the timer trigger loop: a single background ticker
// that fires timer-trigger steps whose interval has elapsed and feeds the
// resulting events into the dispatcher.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"workflow-engine/internal/actions"
	"workflow-engine/internal/common/logging"
	"workflow-engine/internal/engine"
	"workflow-engine/internal/storage"
)

// tickTimeout bounds one tick's dispatching, including remote calls made by
// the fired workflows.
const tickTimeout = time.Minute

// Dispatcher is the trigger entry point the scheduler feeds.
type Dispatcher interface {
	Dispatch(ctx context.Context, service, event string, payload map[string]interface{}) ([]engine.StepResult, error)
}

// Scheduler polls active timer steps on a fixed period and fires the ones
// whose next run has elapsed. Next-run state is kept in memory and
// reconciled against the active step set each tick, so deleted or
// deactivated steps drop out and interval edits take effect without a
// restart.
type Scheduler struct {
	store        storage.Storage
	dispatcher   Dispatcher
	pollInterval time.Duration
	logger       logging.Logger
	now          func() time.Time

	cron *cron.Cron

	mu      sync.Mutex
	nextRun map[int64]time.Time
}

// New creates a timer scheduler with the given poll period.
func New(store storage.Storage, dispatcher Dispatcher, pollInterval time.Duration) *Scheduler {
	if pollInterval < time.Second {
		pollInterval = time.Second
	}
	return &Scheduler{
		store:        store,
		dispatcher:   dispatcher,
		pollInterval: pollInterval,
		logger:       logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "scheduler"}),
		now:          time.Now,
		nextRun:      make(map[int64]time.Time),
	}
}

// Start begins the background loop. A tick that fails is logged and the
// loop continues on its fixed period.
func (s *Scheduler) Start() error {
	if s.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.pollInterval), s.runTick); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.logger.Info("Timer scheduler started", logging.Field{Key: "poll_interval", Value: s.pollInterval.String()})
	return nil
}

// Stop halts the loop and waits for a running tick to finish, bounded by
// the given context.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	stopCtx := s.cron.Stop()
	s.cron = nil
	select {
	case <-stopCtx.Done():
		s.logger.Info("Timer scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runTick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()
	if err := s.tick(ctx); err != nil {
		s.logger.Error("Timer scheduler tick failed", err)
	}
}

func (s *Scheduler) tick(ctx context.Context) error {
	steps, err := s.store.ActiveTimerSteps(ctx, "timer")
	if err != nil {
		return err
	}
	now := s.now().UTC()

	s.mu.Lock()
	// reconcile: drop state for steps no longer active
	active := make(map[int64]struct{}, len(steps))
	for _, step := range steps {
		active[step.ID] = struct{}{}
	}
	for id := range s.nextRun {
		if _, ok := active[id]; !ok {
			delete(s.nextRun, id)
		}
	}
	s.mu.Unlock()

	for _, step := range steps {
		params := step.Params.LiteralMap()
		minutes, ok := actions.ParseIntervalMinutes(params)
		if !ok {
			continue
		}
		interval := time.Duration(minutes) * time.Minute

		s.mu.Lock()
		next, seen := s.nextRun[step.ID]
		if !seen {
			// first observation fires immediately
			next = now
			s.nextRun[step.ID] = now
		}
		due := !now.Before(next)
		s.mu.Unlock()

		if !due {
			continue
		}

		payload := map[string]interface{}{
			"step_id":          step.ID,
			"workflow_id":      step.WorkflowID,
			"triggered_at":     now.Format(time.RFC3339),
			"interval_minutes": minutes,
			"interval_seconds": minutes * 60,
		}
		if len(params) > 0 {
			payload["timer_params"] = params
		}

		if _, err := s.dispatcher.Dispatch(ctx, "timer", step.Event, payload); err != nil {
			s.logger.Error("Failed to trigger timer workflow", err,
				logging.Field{Key: "workflow_id", Value: step.WorkflowID},
				logging.Field{Key: "step_id", Value: step.ID})
		}

		// reschedule regardless of dispatch outcome
		s.mu.Lock()
		s.nextRun[step.ID] = now.Add(interval)
		s.mu.Unlock()
	}
	return nil
}
