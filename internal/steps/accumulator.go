// Package steps turns raw monotonic step-counter readings into per-day and
// lifetime totals. The hardware counter reports total steps since boot and
// resets on reboot, so deltas are computed against a baseline that is
// re-established whenever the counter goes backwards or the day rolls over.
package steps

import (
	"sync"
	"time"

	"github.com/ITAMARV101/duowalk/internal/metrics"
)

// DayKeyFormat partitions step counts by calendar day in local time. The
// accumulator and the remote-sync path must both use it, or local and remote
// views skew around midnight.
const DayKeyFormat = "2006-01-02"

// DayKey returns the calendar-day key for t.
func DayKey(t time.Time) string {
	return t.Format(DayKeyFormat)
}

// Snapshot is a consistent point-in-time view of the counters.
type Snapshot struct {
	Today   int    `json:"today"`
	AllTime int64  `json:"allTime"`
	DayKey  string `json:"dayKey"`
}

// Accumulator maintains the local step counters. The sensor feed is the
// single writer; the sync scheduler only reads snapshots. The mutex keeps a
// snapshot from ever observing a half-updated today/allTime pair.
type Accumulator struct {
	now func() time.Time

	mu          sync.Mutex
	lastRaw     float64
	hasBaseline bool
	today       int
	allTime     int64
	dayKey      string
}

func NewAccumulator(now func() time.Time) *Accumulator {
	if now == nil {
		now = time.Now
	}
	return &Accumulator{now: now, dayKey: DayKey(now())}
}

// NewAccumulatorFromSnapshot restores counters persisted by a previous
// process. A snapshot from an earlier day seeds only the lifetime count; the
// next Record call starts today from zero.
func NewAccumulatorFromSnapshot(now func() time.Time, snap Snapshot) *Accumulator {
	a := NewAccumulator(now)
	a.allTime = snap.AllTime
	if snap.DayKey == a.dayKey {
		a.today = snap.Today
	}
	return a
}

// Record consumes one raw sensor reading: total steps since device boot.
func (a *Accumulator) Record(raw float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Day boundary first, so a stale baseline can't turn into a huge false
	// delta across midnight.
	a.rollDayLocked()

	if !a.hasBaseline {
		a.lastRaw = raw
		a.hasBaseline = true
		return
	}

	if raw < a.lastRaw {
		// Counter reset (reboot or driver restart): re-baseline, count
		// nothing. The reboot-crossing interval is a small undercount; the
		// alternative risks overcounting or negative deltas.
		a.lastRaw = raw
		return
	}

	delta := int(raw - a.lastRaw)
	if delta > 0 {
		a.today += delta
		a.allTime += int64(delta)
		metrics.StepsCounted.Add(float64(delta))
	}
	a.lastRaw = raw
}

// RollDay re-validates the day boundary without a sensor reading, so a
// long-idle period can't sync stale-day data.
func (a *Accumulator) RollDay() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rollDayLocked()
}

func (a *Accumulator) rollDayLocked() {
	today := DayKey(a.now())
	if a.dayKey == today {
		return
	}
	a.dayKey = today
	a.today = 0
	a.hasBaseline = false
}

// Snapshot returns a consistent view of the current totals.
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{Today: a.today, AllTime: a.allTime, DayKey: a.dayKey}
}
