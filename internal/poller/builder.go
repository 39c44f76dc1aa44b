// internal/poller/builder.go
package poller

import (
	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/modbus-scope/internal/config"
	pmodbus "github.com/tamzrod/modbus-scope/internal/poller/modbus"
)

// Build constructs a Poller for one connection and wires the Modbus client lifecycle.
// The session is opened on the first cycle and reused while healthy.
// On transport death, Poller discards the client and uses factory on a future cycle.
func Build(c cfg.ConnectionConfig, log zerolog.Logger, obs Observer) (*Poller, error) {
	// client factory: ONE attempt per call
	factory := func() (Client, error) {
		cli, err := pmodbus.New(pmodbus.Config{
			Endpoint:    c.Endpoint,
			UnitID:      c.UnitID,
			Timeout:     c.Timeout(),
			AddressBase: c.Base(),
		})
		if err != nil {
			return nil, err
		}
		return cli, nil
	}

	opts := []Option{WithLogger(log)}
	if obs != nil {
		opts = append(opts, WithObserver(obs))
	}

	p, err := New(
		Config{
			ConnectionID:   c.ID,
			Label:          c.Label(),
			MaxConsecutive: c.MaxConsecutive,
			SplitOnError:   c.SplitOnError,
		},
		factory,
		opts...,
	)
	if err != nil {
		return nil, err
	}

	return p, nil
}
