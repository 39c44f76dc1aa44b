// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/modbus-scope/internal/status"
)

// StatusWriter is the delivery-only contract for connection status.
// It receives a snapshot and writes it verbatim.
// No logic, no interpretation.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// deviceStatusWriter writes one connection's block into status memory.
type deviceStatusWriter struct {
	plan StatusPlan
	cli  endpointClient

	needFull bool
	last     status.Snapshot
}

var slotNames = [status.LiveSlots]string{
	status.SlotHealthCode:     "health",
	status.SlotLastErrorCode:  "last_error",
	status.SlotSecondsInError: "seconds_in_error",
	status.SlotCycleSuccesses: "cycle_successes",
	status.SlotCycleErrors:    "cycle_errors",
}

// NewDeviceStatusWriter builds a status writer for one connection.
// The first WriteStatus asserts the full block, device name included.
func NewDeviceStatusWriter(plan StatusPlan, cli endpointClient) (StatusWriter, error) {
	if cli == nil {
		return nil, fmt.Errorf("status writer: missing client for endpoint %s", plan.Endpoint)
	}
	return &deviceStatusWriter{
		plan:     plan,
		cli:      cli,
		needFull: true,
		last:     status.Snapshot{Health: status.HealthUnknown},
	}, nil
}

// WriteStatus delivers a snapshot into status memory.
// On any write failure, the next successful call will re-assert the full block.
func (sw *deviceStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil {
		return errors.New("status writer: disabled")
	}

	baseAddr := sw.baseAddr()

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		if err := sw.cli.WriteRegisters(sw.plan.UnitID, baseAddr, status.Encode(s, sw.plan.DeviceName)); err != nil {
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}
		sw.needFull = false
		sw.last = s
		return nil
	}

	// ------------------------------------------------------------
	// Deltas: one single-register write per changed live slot
	// ------------------------------------------------------------
	prev := status.Live(sw.last)
	next := status.Live(s)

	var errs []string
	for slot := range next {
		if prev[slot] == next[slot] {
			continue
		}
		if err := sw.cli.WriteRegisters(sw.plan.UnitID, baseAddr+uint16(slot), []uint16{next[slot]}); err != nil {
			errs = append(errs, fmt.Sprintf("slot%d %s write failed: %v", slot, slotNames[slot], err))
		}
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt; re-assert on next success.
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}

	sw.last = s
	return nil
}

func (sw *deviceStatusWriter) baseAddr() uint16 {
	// Each connection owns a fixed SlotsPerDevice block.
	return sw.plan.Slot * status.SlotsPerDevice
}
