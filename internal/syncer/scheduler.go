// Package syncer moves local step totals into the remote store on a fixed
// period and feeds the accumulator from the sensor stream, both gated on the
// login state.
package syncer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ITAMARV101/duowalk/internal/metrics"
	"github.com/ITAMARV101/duowalk/internal/steps"
)

// DefaultInterval matches the 4-second upload cadence the mobile client uses.
const DefaultInterval = 4 * time.Second

// pushTimeout bounds each remote push; a timeout is a transport failure and
// the next tick simply retries with current totals.
const pushTimeout = 3 * time.Second

// SessionSource reports whether a user session currently exists.
type SessionSource interface {
	CurrentUID() (string, bool)
}

// StepSaver persists one step snapshot remotely as a single multi-field
// update.
type StepSaver interface {
	SaveSteps(ctx context.Context, uid, dayKey string, today int, allTime int64, now time.Time) error
}

type Scheduler struct {
	acc      *steps.Accumulator
	saver    StepSaver
	session  SessionSource
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewScheduler(acc *steps.Accumulator, saver StepSaver, session SessionSource, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		acc:      acc,
		saver:    saver,
		session:  session,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Run ticks until the context is cancelled. Logged-out ticks are skipped,
// not queued: there is no backlog, the next logged-in tick pushes whatever
// the local totals are then.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	// Re-validate the day boundary before reading totals, so a long-idle
	// period can't push yesterday's count under today's key.
	s.acc.RollDay()

	uid, ok := s.session.CurrentUID()
	if !ok {
		return
	}

	snap := s.acc.Snapshot()
	pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()

	if err := s.saver.SaveSteps(pushCtx, uid, snap.DayKey, snap.Today, snap.AllTime, s.now()); err != nil {
		metrics.StepSyncs.WithLabelValues("error").Inc()
		s.logger.Warn("step sync failed", zap.String("uid", uid), zap.Error(err))
		return
	}
	metrics.StepSyncs.WithLabelValues("ok").Inc()
}
