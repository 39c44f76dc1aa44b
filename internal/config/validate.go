// internal/config/validate.go
package config

import (
	"fmt"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	s := cfg.Scope

	if s.Poll.IntervalMs < 0 {
		return fmt.Errorf("poll.interval_ms must be >= 0, got %d", s.Poll.IntervalMs)
	}

	if len(s.Connections) == 0 {
		return fmt.Errorf("at least one connection is required")
	}

	// ------------------------------------------------------------
	// CONNECTIONS
	// ------------------------------------------------------------

	conns := make(map[uint8]ConnectionConfig, len(s.Connections))

	for _, c := range s.Connections {
		if _, dup := conns[c.ID]; dup {
			return fmt.Errorf("connection %d: duplicate id", c.ID)
		}
		conns[c.ID] = c

		if c.Endpoint == "" {
			return fmt.Errorf("connection %d: endpoint is required", c.ID)
		}
		if c.TimeoutMs < 0 {
			return fmt.Errorf("connection %d: timeout_ms must be >= 0, got %d", c.ID, c.TimeoutMs)
		}
		if c.MaxConsecutive > MaxReadQuantity {
			return fmt.Errorf(
				"connection %d: max_consecutive %d exceeds protocol limit %d",
				c.ID,
				c.MaxConsecutive,
				MaxReadQuantity,
			)
		}

		// device_name sanity (ASCII only), it ends up in the status block
		for i := 0; i < len(c.Name); i++ {
			if c.Name[i] > 0x7F {
				return fmt.Errorf("connection %d: name must contain ASCII characters only", c.ID)
			}
		}
	}

	// ------------------------------------------------------------
	// REGISTERS
	// ------------------------------------------------------------

	for i, r := range s.Registers {
		c, ok := conns[r.Connection]
		if !ok {
			return fmt.Errorf("register %d (address %d): unknown connection %d", i, r.Address, r.Connection)
		}

		if r.Width != 0 && r.Width != 16 && r.Width != 32 {
			return fmt.Errorf("register %d (address %d): width must be 16 or 32, got %d", i, r.Address, r.Width)
		}

		if r.Address < c.Base() {
			return fmt.Errorf(
				"register %d: address %d below address_base %d of connection %d",
				i,
				r.Address,
				c.Base(),
				c.ID,
			)
		}

		if r.Width == 32 && r.Address == 0xFFFF {
			return fmt.Errorf("register %d: 32-bit register at %d has no second word", i, r.Address)
		}
	}

	// ------------------------------------------------------------
	// CONNECTION STATUS BLOCK (OPT-IN)
	// ------------------------------------------------------------

	slotOwner := make(map[uint16]uint8)

	for _, c := range s.Connections {
		if c.StatusSlot == nil {
			continue
		}

		if s.Status == nil || s.Status.Endpoint == "" {
			return fmt.Errorf(
				"connection %d: status_slot is set but status.endpoint is not defined",
				c.ID,
			)
		}

		slot := *c.StatusSlot
		if prev, exists := slotOwner[slot]; exists {
			return fmt.Errorf(
				"status_slot collision: slot=%d used by connections %d and %d",
				slot,
				prev,
				c.ID,
			)
		}
		slotOwner[slot] = c.ID
	}

	// ------------------------------------------------------------
	// PUBLISH / LOG
	// ------------------------------------------------------------

	if m := s.Publish.MQTT; m != nil {
		if m.Broker == "" {
			return fmt.Errorf("publish.mqtt: broker is required")
		}
		if m.Topic == "" {
			return fmt.Errorf("publish.mqtt: topic is required")
		}
		if m.QoS > 2 {
			return fmt.Errorf("publish.mqtt: qos must be 0, 1 or 2, got %d", m.QoS)
		}
	}

	switch s.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", s.Log.Format)
	}

	return nil
}
