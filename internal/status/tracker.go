// internal/status/tracker.go
package status

import (
	"math"

	"github.com/tamzrod/modbus-scope/internal/poller"
)

// Observation is one connection's outcome for one cycle.
type Observation struct {
	Enabled   bool
	Successes uint32
	Errors    uint32
	Err       error
}

// Tracker owns the status snapshot of one connection.
// Not safe for concurrent use; the runner goroutine owns it.
type Tracker struct {
	snap Snapshot
}

// NewTracker starts in HealthUnknown.
func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Health: HealthUnknown}}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot { return t.snap }

// Observe folds one cycle outcome into the snapshot and reports whether
// anything changed. seconds_in_error is only advanced by Tick.
func (t *Tracker) Observe(o Observation) bool {
	next := t.snap
	next.CycleSuccesses = saturate(o.Successes)
	next.CycleErrors = saturate(o.Errors)

	switch {
	case !o.Enabled:
		next.Health = HealthDisabled
		next.LastErrorCode = 0
		next.SecondsInError = 0
		next.CycleSuccesses, next.CycleErrors = 0, 0

	case o.Errors == 0 && o.Successes == 0:
		next.Health = HealthUnknown
		next.LastErrorCode = 0
		next.SecondsInError = 0

	case o.Errors == 0:
		// Recovery resets the error trail.
		next.Health = HealthOK
		next.LastErrorCode = 0
		next.SecondsInError = 0

	default:
		next.Health = HealthError
		if o.Successes > 0 {
			next.Health = HealthPartial
		}
		next.LastErrorCode = poller.ErrorCode(o.Err)
		if next.LastErrorCode == 0 {
			next.LastErrorCode = 1
		}
	}

	changed := next != t.snap
	t.snap = next
	return changed
}

// Tick advances seconds_in_error by one while in error. Call at 1 Hz.
// The counter saturates and never wraps.
func (t *Tracker) Tick() bool {
	if !t.snap.InError() || t.snap.SecondsInError == math.MaxUint16 {
		return false
	}
	t.snap.SecondsInError++
	return true
}

func saturate(v uint32) uint16 {
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}
