// Package scheduler runs reconciliation passes on a fixed interval.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// warnAfterFailures is the number of consecutive failed passes before a
// warning is announced on the channel. Matches the original relay's
// escalation threshold.
const warnAfterFailures = 5

// PassRunner is the interface for executing one reconciliation pass.
type PassRunner interface {
	RunPass(ctx context.Context) error
}

// Notifier sends plain-content service notices to the channel.
type Notifier interface {
	Announce(ctx context.Context, content string) error
}

// Scheduler invokes the engine at a fixed cadence. Passes never overlap:
// each tick waits for the previous pass to finish before the next fires.
type Scheduler struct {
	runner   PassRunner
	notifier Notifier
	log      *slog.Logger
	tick     time.Duration
	failures int
}

// New creates a Scheduler with the default 30-second interval.
func New(runner PassRunner, log *slog.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		log:    log,
		tick:   30 * time.Second,
	}
}

// SetTickInterval overrides the default 30-second pass interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// SetNotifier enables the repeated-failure warning announcement.
func (s *Scheduler) SetNotifier(n Notifier) {
	s.notifier = n
}

// Run starts the scheduler loop, blocking until ctx is cancelled. The first
// pass fires immediately.
func (s *Scheduler) Run(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := s.runner.RunPass(ctx); err != nil {
		s.log.Error("reconciliation pass", "error", err)
		s.escalateFailure(ctx)
		return
	}
	s.failures = 0
	s.log.Debug("reconciliation pass done", "duration", time.Since(start))
}

// escalateFailure announces one warning on the channel once passes have
// failed warnAfterFailures times in a row. The counter resets on the next
// successful pass, so a persistent outage produces a single notice.
func (s *Scheduler) escalateFailure(ctx context.Context) {
	s.failures++
	if s.failures != warnAfterFailures || s.notifier == nil {
		return
	}
	if err := s.notifier.Announce(ctx, "Warning: reconciliation passes are failing repeatedly."); err != nil {
		s.log.Warn("send failure warning", "error", err)
	}
}
