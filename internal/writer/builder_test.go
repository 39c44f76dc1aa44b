// internal/writer/builder_test.go
package writer

import (
	"fmt"
	"testing"

	cfg "github.com/tamzrod/modbus-scope/internal/config"
	"github.com/tamzrod/modbus-scope/internal/simdevice"
	"github.com/tamzrod/modbus-scope/internal/status"
)

func u16(v uint16) *uint16 { return &v }

func TestBuildStatusPlans(t *testing.T) {
	c := &cfg.Config{Scope: cfg.ScopeConfig{
		Connections: []cfg.ConnectionConfig{
			{ID: 0, Endpoint: "a:502", StatusSlot: u16(3)},
			{ID: 1, Endpoint: "b:502", Name: "boiler"},
		},
		Status: &cfg.StatusConfig{Endpoint: "mem:1502", UnitID: 9},
	}}

	plans := BuildStatusPlans(c)
	if len(plans) != 1 {
		t.Fatalf("expected 1 plan, got %d", len(plans))
	}
	want := StatusPlan{ConnectionID: 0, Endpoint: "mem:1502", UnitID: 9, Slot: 3, DeviceName: "conn0"}
	if plans[0] != want {
		t.Fatalf("got=%+v want=%+v", plans[0], want)
	}

	c.Scope.Status = nil
	if BuildStatusPlans(c) != nil {
		t.Fatalf("no status endpoint, no plans")
	}
}

func TestBuildStatusWriters_WritesToStatusMemory(t *testing.T) {
	mem := simdevice.Start(t)

	c, err := cfg.Parse([]byte(fmt.Sprintf(`
scope:
  connections:
    - { id: 4, name: PLC-01, endpoint: 127.0.0.1:502, status_slot: 1 }
  status:
    endpoint: %q
    unit_id: 1
    timeout_ms: 500
`, mem.Endpoint)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	writers, closeAll, err := BuildStatusWriters(c)
	if err != nil {
		t.Fatalf("BuildStatusWriters: %v", err)
	}
	defer closeAll()

	sw, ok := writers[4]
	if !ok {
		t.Fatalf("missing writer for connection 4")
	}

	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthOK, CycleSuccesses: 7}); err != nil {
		t.Fatalf("WriteStatus: %v", err)
	}

	base := uint16(status.SlotsPerDevice)
	if v, _ := mem.Get(base + status.SlotHealthCode); v != status.HealthOK {
		t.Fatalf("health: got=%d", v)
	}
	if v, _ := mem.Get(base + status.SlotCycleSuccesses); v != 7 {
		t.Fatalf("cycle successes: got=%d", v)
	}
	if v, _ := mem.Get(base + status.SlotDeviceNameStart); v != uint16('P')<<8|uint16('L') {
		t.Fatalf("device name: got=%#04x", v)
	}

	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthError, LastErrorCode: 1, CycleSuccesses: 7}); err != nil {
		t.Fatalf("WriteStatus delta: %v", err)
	}
	if v, _ := mem.Get(base + status.SlotHealthCode); v != status.HealthError {
		t.Fatalf("health after delta: got=%d", v)
	}
	if mem.Writes() != 3 {
		t.Fatalf("expected full block + 2 deltas, got %d writes", mem.Writes())
	}
}
