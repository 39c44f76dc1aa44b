// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-scope/internal/poller"
	"github.com/tamzrod/modbus-scope/internal/register"
	"github.com/tamzrod/modbus-scope/internal/resolve"
)

// Orchestrator fans a poll cycle out to every enabled connection, waits for
// all of them, merges their results and resolves typed values.
//
// Cycle and Run must not be called concurrently.
type Orchestrator struct {
	set      register.Set
	conns    []Connection
	resolver *resolve.Resolver
	interval time.Duration

	stats map[uint8]*ConnectionStats

	log zerolog.Logger
}

// Config is the minimal runtime config the orchestrator needs.
type Config struct {
	Interval    time.Duration
	Descriptors []register.Descriptor
	Connections []Connection
}

// New validates cfg and creates an orchestrator.
func New(cfg Config, log zerolog.Logger) (*Orchestrator, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("orchestrator: interval must be > 0")
	}

	conns := make([]Connection, len(cfg.Connections))
	copy(conns, cfg.Connections)
	sort.Slice(conns, func(i, j int) bool { return conns[i].ID < conns[j].ID })

	orders := make(map[uint8]resolve.WordOrder, len(conns))
	stats := make(map[uint8]*ConnectionStats, len(conns))
	for i, c := range conns {
		if i > 0 && conns[i-1].ID == c.ID {
			return nil, errors.New("orchestrator: duplicate connection id")
		}
		if c.Enabled && c.Poller == nil {
			return nil, errors.New("orchestrator: enabled connection without poller")
		}
		orders[c.ID] = c.Order
		stats[c.ID] = &ConnectionStats{ConnectionID: c.ID, Label: c.Label, Enabled: c.Enabled}
	}

	set := register.NewSet(cfg.Descriptors)

	return &Orchestrator{
		set:      set,
		conns:    conns,
		resolver: resolve.New(set, orders),
		interval: cfg.Interval,
		stats:    stats,
		log:      log,
	}, nil
}

// Descriptors returns the configured descriptors in order.
func (o *Orchestrator) Descriptors() []register.Descriptor {
	return o.set.Descriptors()
}

type partial struct {
	connectionID uint8
	res          poller.Result
	err          error
}

// Cycle performs exactly one poll cycle.
// Device and connection failures show up as failed values, never as an error;
// the only error is ctx ending before every connection finished.
func (o *Orchestrator) Cycle(ctx context.Context) (CycleResult, error) {
	started := time.Now()
	id := uuid.New()
	log := o.log.With().Str("cycle", id.String()).Logger()

	done := make(chan partial, len(o.conns))
	active := 0

	for _, c := range o.conns {
		if !c.Enabled {
			continue
		}
		addrs := o.resolver.AddressList(c.ID)
		if len(addrs) == 0 {
			continue
		}

		active++
		go func(c Connection, addrs []uint16) {
			res, err := c.Poller.Poll(ctx, addrs)
			done <- partial{connectionID: c.ID, res: res, err: err}
		}(c, addrs)
	}

	// Barrier: nothing is resolved until every active connection is Done.
	// merged is keyed by connection, then (inside Values) by address.
	merged := make(map[uint8]poller.Result, active)
	var abort error
	for i := 0; i < active; i++ {
		p := <-done
		if p.err != nil {
			abort = p.err
			continue
		}
		merged[p.connectionID] = p.res
	}

	if abort == nil {
		abort = ctx.Err()
	}
	if abort != nil {
		log.Debug().Err(abort).Msg("cycle aborted")
		return CycleResult{}, abort
	}

	o.resolver.StartRead()
	for _, c := range o.conns {
		res, ok := merged[c.ID]
		if !ok {
			// Disabled or nothing to read: descriptors stay (0, false).
			continue
		}
		o.resolver.ProcessPartialResult(res.Values, c.ID)
	}

	out := CycleResult{
		ID:          id,
		At:          started,
		Values:      o.resolver.FinishRead(),
		Connections: o.updateStats(merged),
		Took:        time.Since(started),
	}

	for _, cs := range out.Connections {
		if cs.CycleErrors > 0 {
			log.Warn().
				Uint8("connection", cs.ConnectionID).
				Uint32("errors", cs.CycleErrors).
				Err(cs.LastErr).
				Msg("cycle completed with errors")
		}
	}
	log.Debug().Dur("took", out.Took).Int("values", len(out.Values)).Msg("cycle done")

	return out, nil
}

func (o *Orchestrator) updateStats(merged map[uint8]poller.Result) []ConnectionStats {
	out := make([]ConnectionStats, 0, len(o.conns))
	for _, c := range o.conns {
		st := o.stats[c.ID]
		st.CycleSuccesses, st.CycleErrors, st.LastErr = 0, 0, nil

		if res, ok := merged[c.ID]; ok {
			st.CycleSuccesses = res.Successes
			st.CycleErrors = res.Errors
			st.LastErr = res.LastErr
			st.Successes += uint64(res.Successes)
			st.Errors += uint64(res.Errors)
		}
		out = append(out, *st)
	}
	return out
}

// Close closes every poller session.
func (o *Orchestrator) Close() error {
	var last error
	for _, c := range o.conns {
		if c.Poller == nil {
			continue
		}
		if err := c.Poller.Close(); err != nil {
			last = err
		}
	}
	return last
}
