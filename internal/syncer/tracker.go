package syncer

import (
	"context"

	"go.uber.org/zap"

	"github.com/ITAMARV101/duowalk/internal/session"
	"github.com/ITAMARV101/duowalk/internal/steps"
)

// Tracker consumes the raw sensor feed and forwards readings to the
// accumulator while a session exists. Each reading is gated on the live
// session state, so login and logout take effect immediately rather than on
// the next sync tick. Readings that arrive while logged out are dropped.
type Tracker struct {
	acc      *steps.Accumulator
	readings <-chan float64
	events   <-chan session.Event
	session  SessionSource
	logger   *zap.Logger
}

func NewTracker(acc *steps.Accumulator, readings <-chan float64, events <-chan session.Event, src SessionSource, logger *zap.Logger) *Tracker {
	return &Tracker{
		acc:      acc,
		readings: readings,
		events:   events,
		session:  src,
		logger:   logger,
	}
}

// Run processes sensor readings and auth transitions until the context is
// cancelled.
func (t *Tracker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-t.events:
			if !ok {
				return
			}
			if ev.LoggedIn {
				// Fresh session: re-validate the day before the first
				// reading so a stale day key can't inflate the first delta.
				t.acc.RollDay()
				t.logger.Info("step tracking started", zap.String("uid", ev.UID))
			} else {
				t.logger.Info("step tracking stopped")
			}
		case raw, ok := <-t.readings:
			if !ok {
				return
			}
			if _, tracking := t.session.CurrentUID(); !tracking {
				continue
			}
			t.acc.Record(raw)
		}
	}
}
