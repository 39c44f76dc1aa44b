// internal/orchestrator/builder.go
package orchestrator

import (
	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/modbus-scope/internal/config"
	"github.com/tamzrod/modbus-scope/internal/logging"
	"github.com/tamzrod/modbus-scope/internal/poller"
	"github.com/tamzrod/modbus-scope/internal/register"
	"github.com/tamzrod/modbus-scope/internal/resolve"
)

// Build wires one poller per enabled connection from a validated, normalized config.
// Disabled connections get no poller and never touch the network.
func Build(c *cfg.Config, log zerolog.Logger, obs poller.Observer) (*Orchestrator, error) {
	s := c.Scope

	descs := make([]register.Descriptor, 0, len(s.Registers))
	for _, r := range s.Registers {
		descs = append(descs, register.Descriptor{
			Address:      r.Address,
			ConnectionID: r.Connection,
			Width:        register.Width(r.Width),
			Signed:       r.Signed,
		})
	}

	pollerLog := logging.Component(log, "poller")

	conns := make([]Connection, 0, len(s.Connections))
	for _, cc := range s.Connections {
		conn := Connection{
			ID:      cc.ID,
			Label:   cc.Label(),
			Enabled: cc.IsEnabled(),
			Order:   resolve.LittleEndian,
		}
		if !cc.LittleEndian() {
			conn.Order = resolve.BigEndian
		}

		if conn.Enabled {
			p, err := poller.Build(cc, pollerLog, obs)
			if err != nil {
				return nil, err
			}
			conn.Poller = p
		}

		conns = append(conns, conn)
	}

	return New(Config{
		Interval:    s.Poll.Interval(),
		Descriptors: descs,
		Connections: conns,
	}, logging.Component(log, "orchestrator"))
}
