// internal/orchestrator/types.go
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tamzrod/modbus-scope/internal/poller"
	"github.com/tamzrod/modbus-scope/internal/resolve"
)

// ConnectionPoller is what the orchestrator needs from a per-connection poller.
type ConnectionPoller interface {
	Poll(ctx context.Context, addresses []uint16) (poller.Result, error)
	Close() error
}

// Connection binds a poller to its per-connection settings.
type Connection struct {
	ID      uint8
	Label   string
	Enabled bool
	Order   resolve.WordOrder
	Poller  ConnectionPoller
}

// ConnectionStats reports one connection's counters after a cycle.
type ConnectionStats struct {
	ConnectionID uint8
	Label        string
	Enabled      bool

	// This cycle.
	CycleSuccesses uint32
	CycleErrors    uint32
	LastErr        error

	// Since start.
	Successes uint64
	Errors    uint64
}

// CycleResult is a snapshot produced by one complete poll cycle.
type CycleResult struct {
	ID   uuid.UUID
	At   time.Time
	Took time.Duration

	// One entry per configured descriptor, in configured order.
	Values []resolve.Value

	// Sorted by connection id.
	Connections []ConnectionStats
}
