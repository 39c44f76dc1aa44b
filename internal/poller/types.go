// internal/poller/types.go
package poller

import (
	"sync/atomic"

	"github.com/tamzrod/modbus-scope/internal/batch"
)

// State is the per-connection cycle state.
type State int32

const (
	Idle State = iota
	Connecting
	Reading
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Reading:
		return "reading"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

type stateBox struct{ v atomic.Int32 }

func (b *stateBox) load() State   { return State(b.v.Load()) }
func (b *stateBox) store(s State) { b.v.Store(int32(s)) }

// Outcome classifies one transaction for observers.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeException Outcome = "exception"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeTransport Outcome = "transport"
	OutcomeMismatch  Outcome = "mismatch"
	OutcomeConnect   Outcome = "connect"
)

// Result is what a connection emits once its cycle reaches Done.
type Result struct {
	ConnectionID uint8

	// Exactly one entry per requested address.
	Values batch.ResultMap

	// Per-cycle transaction counters.
	Successes uint32
	Errors    uint32

	// LastErr is the last failure seen this cycle, nil when none.
	LastErr error
}
