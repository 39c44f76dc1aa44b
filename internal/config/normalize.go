// internal/config/normalize.go
package config

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	s := &cfg.Scope

	if s.Poll.IntervalMs == 0 {
		s.Poll.IntervalMs = DefaultIntervalMs
	}

	for ci := range s.Connections {
		c := &s.Connections[ci]

		if c.TimeoutMs == 0 {
			c.TimeoutMs = DefaultTimeoutMs
		}
		if c.MaxConsecutive == 0 {
			c.MaxConsecutive = DefaultMaxConsecutive
		}

		// Truncate name to what the status block can hold.
		if len(c.Name) > 16 {
			c.Name = c.Name[:16]
		}
	}

	for ri := range s.Registers {
		if s.Registers[ri].Width == 0 {
			s.Registers[ri].Width = 16
		}
	}

	if s.Status != nil && s.Status.TimeoutMs == 0 {
		s.Status.TimeoutMs = DefaultTimeoutMs
	}

	if m := s.Publish.MQTT; m != nil && m.ClientID == "" {
		m.ClientID = "mbscope"
	}

	if s.Log.Level == "" {
		s.Log.Level = "info"
	}
	if s.Log.Format == "" {
		s.Log.Format = "console"
	}
}
