// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-scope/internal/batch"
)

// Client abstracts the Modbus operations the poller needs.
// One outstanding call at a time; the poller never overlaps requests.
type Client interface {
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) // FC 3
	Close() error
}

// Factory establishes a new session. ONE attempt per call.
type Factory func() (Client, error)

// Observer receives one call per resolved transaction.
type Observer interface {
	Transaction(connectionID uint8, read batch.Read, outcome Outcome, took time.Duration)
}

// Config is the minimal runtime config the poller needs.
type Config struct {
	ConnectionID   uint8
	Label          string
	MaxConsecutive uint16

	// SplitOnError narrows a multi-register read that got a device exception
	// into single reads instead of failing the whole batch.
	SplitOnError bool
}

// Poller drives one connection through Idle → Connecting → Reading → Done
// each cycle, one transaction at a time.
//
// Poll must not be called concurrently. State may be read from any goroutine.
type Poller struct {
	cfg     Config
	factory Factory
	client  Client

	batcher *batch.Batcher
	state   stateBox

	successes uint32
	errors    uint32
	lastErr   error

	log zerolog.Logger
	obs Observer
}

// Option customizes a Poller.
type Option func(*Poller)

func WithLogger(l zerolog.Logger) Option {
	return func(p *Poller) { p.log = l }
}

func WithObserver(o Observer) Option {
	return func(p *Poller) { p.obs = o }
}

// New creates a poller with immutable config. The session is opened lazily.
func New(cfg Config, factory Factory, opts ...Option) (*Poller, error) {
	if factory == nil {
		return nil, errors.New("poller: client factory required")
	}
	if cfg.MaxConsecutive == 0 {
		return nil, errors.New("poller: max consecutive must be > 0")
	}

	p := &Poller{
		cfg:     cfg,
		factory: factory,
		batcher: batch.New(),
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	p.log = p.log.With().Uint8("connection", cfg.ConnectionID).Str("label", cfg.Label).Logger()
	return p, nil
}

// ConnectionID returns the id of the connection this poller serves.
func (p *Poller) ConnectionID() uint8 { return p.cfg.ConnectionID }

// State returns the current cycle state.
func (p *Poller) State() State { return p.state.load() }

// Poll runs one full cycle over addresses and returns once every address has
// a result. If ctx ends first, the in-flight transaction and the remaining
// queue are discarded and ctx.Err() is returned without a result.
func (p *Poller) Poll(ctx context.Context, addresses []uint16) (Result, error) {
	p.batcher.Reset(addresses, p.cfg.MaxConsecutive)
	p.successes, p.errors, p.lastErr = 0, 0, nil

	if !p.batcher.HasNext() {
		p.state.store(Done)
		return p.result(), nil
	}

	p.state.store(Connecting)
	p.log.Debug().Uints16("addresses", addresses).Msg("cycle start")

	if err := p.ensureClient(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return p.abort(ctxErr)
		}
		p.fail(err)
		p.log.Error().Err(err).Msg("connect failed, failing cycle")
		p.observe(batch.Read{}, OutcomeConnect, 0)
		p.batcher.AddAllErrors()
		p.state.store(Done)
		return p.result(), nil
	}

	p.state.store(Reading)

	for p.batcher.HasNext() {
		if err := ctx.Err(); err != nil {
			return p.abort(err)
		}

		read, _ := p.batcher.Next()
		started := time.Now()
		values, err := p.transact(ctx, read)
		took := time.Since(started)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return p.abort(ctxErr)
		}

		p.handle(read, values, err, took)
	}

	p.state.store(Done)

	res := p.result()
	p.log.Debug().
		Str("results", res.Values.String()).
		Uint32("successes", res.Successes).
		Uint32("errors", res.Errors).
		Msg("cycle done")
	return res, nil
}

// Close drops the session, if any.
func (p *Poller) Close() error {
	return p.dropClient()
}

func (p *Poller) handle(read batch.Read, values []uint16, err error, took time.Duration) {
	if err == nil {
		if p.batcher.AddSuccess(read.Start, read.Count, values) {
			p.successes++
			p.observe(read, OutcomeOK, took)
			return
		}

		// The reply was dropped untouched; no matching reply can arrive for
		// this transaction anymore, so it resolves like a failed request.
		mismatch := fmt.Errorf("%w: want %v, got %d values", ErrProtocolMismatch, read, len(values))
		p.log.Warn().Err(mismatch).Msg("reply dropped")
		p.fail(mismatch)
		p.observe(read, OutcomeMismatch, took)
		p.batcher.AddError(read.Start, read.Count)
		return
	}

	classified, outcome := classify(err)
	p.fail(classified)
	p.observe(read, outcome, took)

	switch outcome {
	case OutcomeException:
		if p.cfg.SplitOnError && read.Count > 1 {
			p.log.Info().Err(classified).Stringer("read", read).Msg("splitting read to isolate failing address")
			p.batcher.SplitNextToSingleReads()
			return
		}
		p.log.Error().Err(classified).Stringer("read", read).Msg("read failed")
		p.batcher.AddError(read.Start, read.Count)

	default:
		// Timeout or broken session: an unreachable device must not stall
		// the cycle, so everything left fails now and the next cycle reconnects.
		p.log.Error().Err(classified).Stringer("read", read).Int("remaining", p.batcher.Len()).Msg("session lost, failing remaining reads")
		p.batcher.AddAllErrors()
		_ = p.dropClient()
	}
}

func (p *Poller) fail(err error) {
	p.errors++
	p.lastErr = err
}

func (p *Poller) result() Result {
	return Result{
		ConnectionID: p.cfg.ConnectionID,
		Values:       p.batcher.ResultMap(),
		Successes:    p.successes,
		Errors:       p.errors,
		LastErr:      p.lastErr,
	}
}

func (p *Poller) abort(err error) (Result, error) {
	p.log.Debug().Err(err).Msg("cycle aborted")
	_ = p.dropClient()
	p.batcher.Reset(nil, p.cfg.MaxConsecutive)
	p.state.store(Idle)
	return Result{}, err
}

func (p *Poller) observe(read batch.Read, outcome Outcome, took time.Duration) {
	if p.obs != nil {
		p.obs.Transaction(p.cfg.ConnectionID, read, outcome, took)
	}
}

// ensureClient reuses a healthy session or builds a new one.
func (p *Poller) ensureClient(ctx context.Context) error {
	if p.client != nil {
		return nil
	}

	type dialed struct {
		c   Client
		err error
	}
	done := make(chan dialed, 1)
	go func() {
		c, err := p.factory()
		done <- dialed{c, err}
	}()

	select {
	case d := <-done:
		if d.err != nil {
			return fmt.Errorf("%w: %w", ErrConnect, d.err)
		}
		p.client = d.c
		p.log.Info().Msg("connected")
		return nil
	case <-ctx.Done():
		// Late sessions are closed as soon as they appear.
		go func() {
			if d := <-done; d.c != nil {
				_ = d.c.Close()
			}
		}()
		return ctx.Err()
	}
}

// transact issues exactly one read and waits for its reply, timeout or ctx.
func (p *Poller) transact(ctx context.Context, read batch.Read) ([]uint16, error) {
	type reply struct {
		values []uint16
		err    error
	}
	client := p.client
	done := make(chan reply, 1)
	go func() {
		v, err := client.ReadHoldingRegisters(read.Start, read.Count)
		done <- reply{v, err}
	}()

	select {
	case r := <-done:
		return r.values, r.err
	case <-ctx.Done():
		// The session is abandoned; closing it in the background unblocks
		// the pending read once the transport lets go.
		p.client = nil
		go func() { _ = client.Close() }()
		return nil, ctx.Err()
	}
}

func (p *Poller) dropClient() error {
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}
