// internal/writer/builder.go
package writer

import (
	cfg "github.com/tamzrod/modbus-scope/internal/config"
	wmodbus "github.com/tamzrod/modbus-scope/internal/writer/modbus"
)

// BuildStatusPlans returns one plan per connection with a status_slot.
// Assumes config has already passed validation.
func BuildStatusPlans(c *cfg.Config) []StatusPlan {
	s := c.Scope
	if s.Status == nil || s.Status.Endpoint == "" {
		return nil
	}

	var plans []StatusPlan
	for _, cc := range s.Connections {
		if cc.StatusSlot == nil {
			continue
		}
		plans = append(plans, StatusPlan{
			ConnectionID: cc.ID,
			Endpoint:     s.Status.Endpoint,
			UnitID:       s.Status.UnitID,
			Slot:         *cc.StatusSlot,
			DeviceName:   cc.Label(),
		})
	}
	return plans
}

// BuildStatusWriters creates the status memory client and one writer per plan,
// keyed by connection id. The returned close func releases the client.
func BuildStatusWriters(c *cfg.Config) (map[uint8]StatusWriter, func() error, error) {
	plans := BuildStatusPlans(c)
	if len(plans) == 0 {
		return nil, func() error { return nil }, nil
	}

	cli, err := wmodbus.NewEndpointClient(wmodbus.Config{
		Endpoint: c.Scope.Status.Endpoint,
		Timeout:  c.Scope.Status.Timeout(),
	})
	if err != nil {
		return nil, nil, err
	}

	writers := make(map[uint8]StatusWriter, len(plans))
	for _, p := range plans {
		w, err := NewDeviceStatusWriter(p, cli)
		if err != nil {
			_ = cli.Close()
			return nil, nil, err
		}
		writers[p.ConnectionID] = w
	}

	return writers, cli.Close, nil
}
