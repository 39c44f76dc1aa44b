// internal/poller/poller_test.go
package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tamzrod/modbus-scope/internal/batch"
)

// ---- fakes ----

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }

type exceptionErr struct{ code uint16 }

func (e exceptionErr) Error() string { return "exception" }
func (e exceptionErr) Code() uint16  { return e.code }

type fakeClient struct {
	mu     sync.Mutex
	regs   map[uint16]uint16
	fail   map[uint16]error // any read touching the address fails with this error
	short  bool             // reply one value short
	block  chan struct{}    // if set, reads wait on it
	reads  []batch.Read
	closed bool
}

func newFakeClient(regs map[uint16]uint16) *fakeClient {
	return &fakeClient{regs: regs, fail: map[uint16]error{}}
}

func (f *fakeClient) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	f.mu.Lock()
	f.reads = append(f.reads, batch.Read{Start: addr, Count: qty})
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]uint16, 0, qty)
	for i := uint16(0); i < qty; i++ {
		if err, ok := f.fail[addr+i]; ok {
			return nil, err
		}
		out = append(out, f.regs[addr+i])
	}
	if f.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeClient) readLog() []batch.Read {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]batch.Read, len(f.reads))
	copy(out, f.reads)
	return out
}

type countingFactory struct {
	client Client
	err    error
	calls  int
}

func (c *countingFactory) factory() (Client, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.client, nil
}

type recordingObserver struct {
	outcomes []Outcome
}

func (r *recordingObserver) Transaction(_ uint8, _ batch.Read, o Outcome, _ time.Duration) {
	r.outcomes = append(r.outcomes, o)
}

func newPoller(t *testing.T, cfg Config, f Factory, opts ...Option) *Poller {
	t.Helper()
	if cfg.MaxConsecutive == 0 {
		cfg.MaxConsecutive = 125
	}
	p, err := New(cfg, f, opts...)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return p
}

func assertResult(t *testing.T, m batch.ResultMap, addr uint16, want batch.Result) {
	t.Helper()
	got, ok := m[addr]
	if !ok {
		t.Fatalf("addr %d unresolved", addr)
	}
	if got != want {
		t.Fatalf("addr %d: got=%+v want=%+v", addr, got, want)
	}
}

// ---- tests ----

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{MaxConsecutive: 1}, nil); err == nil {
		t.Fatalf("expected error for nil factory")
	}
	f := &countingFactory{}
	if _, err := New(Config{}, f.factory); err == nil {
		t.Fatalf("expected error for zero max consecutive")
	}
}

func TestPoll_SuccessBatches(t *testing.T) {
	cli := newFakeClient(map[uint16]uint16{40001: 1, 40002: 2, 40003: 3, 40005: 5})
	f := &countingFactory{client: cli}
	obs := &recordingObserver{}
	p := newPoller(t, Config{ConnectionID: 4, MaxConsecutive: 3}, f.factory, WithObserver(obs))

	if p.State() != Idle {
		t.Fatalf("new poller should be idle, got %v", p.State())
	}

	res, err := p.Poll(context.Background(), []uint16{40001, 40002, 40003, 40005})
	if err != nil {
		t.Fatalf("Poll err=%v", err)
	}

	want := []batch.Read{{Start: 40001, Count: 3}, {Start: 40005, Count: 1}}
	got := cli.readLog()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("transactions: got=%v want=%v", got, want)
	}

	if res.ConnectionID != 4 || res.Successes != 2 || res.Errors != 0 || res.LastErr != nil {
		t.Fatalf("unexpected result header: %+v", res)
	}
	for a, v := range map[uint16]uint16{40001: 1, 40002: 2, 40003: 3, 40005: 5} {
		assertResult(t, res.Values, a, batch.Result{Value: v, Success: true})
	}
	if p.State() != Done {
		t.Fatalf("expected Done, got %v", p.State())
	}
	if len(obs.outcomes) != 2 || obs.outcomes[0] != OutcomeOK {
		t.Fatalf("observer: %v", obs.outcomes)
	}
}

func TestPoll_ExceptionFailsOnlyHeadBatch(t *testing.T) {
	cli := newFakeClient(map[uint16]uint16{1: 1, 2: 2, 10: 10})
	cli.fail[2] = exceptionErr{code: 2}
	f := &countingFactory{client: cli}
	p := newPoller(t, Config{MaxConsecutive: 10}, f.factory)

	res, err := p.Poll(context.Background(), []uint16{1, 2, 10})
	if err != nil {
		t.Fatalf("Poll err=%v", err)
	}

	assertResult(t, res.Values, 1, batch.Result{})
	assertResult(t, res.Values, 2, batch.Result{})
	assertResult(t, res.Values, 10, batch.Result{Value: 10, Success: true})

	if res.Successes != 1 || res.Errors != 1 {
		t.Fatalf("counters: %+v", res)
	}
	if !errors.Is(res.LastErr, ErrRequest) {
		t.Fatalf("expected ErrRequest, got %v", res.LastErr)
	}
	if ErrorCode(res.LastErr) != 2 {
		t.Fatalf("expected exception code 2, got %d", ErrorCode(res.LastErr))
	}
	if cli.closed {
		t.Fatalf("device exception must not drop the session")
	}
}

func TestPoll_SplitOnErrorIsolatesAddress(t *testing.T) {
	cli := newFakeClient(map[uint16]uint16{1: 11, 2: 12, 3: 13})
	cli.fail[2] = exceptionErr{code: 2}
	f := &countingFactory{client: cli}
	p := newPoller(t, Config{MaxConsecutive: 10, SplitOnError: true}, f.factory)

	res, err := p.Poll(context.Background(), []uint16{1, 2, 3})
	if err != nil {
		t.Fatalf("Poll err=%v", err)
	}

	assertResult(t, res.Values, 1, batch.Result{Value: 11, Success: true})
	assertResult(t, res.Values, 2, batch.Result{})
	assertResult(t, res.Values, 3, batch.Result{Value: 13, Success: true})

	want := []batch.Read{{Start: 1, Count: 3}, {Start: 1, Count: 1}, {Start: 2, Count: 1}, {Start: 3, Count: 1}}
	got := cli.readLog()
	if len(got) != len(want) {
		t.Fatalf("transactions: got=%v want=%v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transactions: got=%v want=%v", got, want)
		}
	}
}

func TestPoll_TimeoutFailsRemainingAndReconnects(t *testing.T) {
	cli := newFakeClient(map[uint16]uint16{1: 1, 5: 5, 9: 9})
	cli.fail[5] = timeoutErr{}
	f := &countingFactory{client: cli}
	p := newPoller(t, Config{MaxConsecutive: 10}, f.factory)

	res, err := p.Poll(context.Background(), []uint16{1, 5, 9})
	if err != nil {
		t.Fatalf("Poll err=%v", err)
	}

	assertResult(t, res.Values, 1, batch.Result{Value: 1, Success: true})
	assertResult(t, res.Values, 5, batch.Result{})
	assertResult(t, res.Values, 9, batch.Result{})

	if got := len(cli.readLog()); got != 2 {
		t.Fatalf("read after timeout must not be issued, got %d reads", got)
	}
	if !errors.Is(res.LastErr, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", res.LastErr)
	}
	if !cli.closed {
		t.Fatalf("session should be dropped after timeout")
	}

	delete(cli.fail, 5)
	res, err = p.Poll(context.Background(), []uint16{1, 5, 9})
	if err != nil {
		t.Fatalf("Poll err=%v", err)
	}
	if f.calls != 2 {
		t.Fatalf("expected reconnect on next cycle, factory calls=%d", f.calls)
	}
	if res.Errors != 0 || res.Successes != 3 {
		t.Fatalf("counters must reset each cycle: %+v", res)
	}
}

func TestPoll_TransportErrorFailsRemaining(t *testing.T) {
	cli := newFakeClient(map[uint16]uint16{})
	cli.fail[1] = errors.New("connection reset by peer")
	f := &countingFactory{client: cli}
	p := newPoller(t, Config{MaxConsecutive: 1}, f.factory)

	res, _ := p.Poll(context.Background(), []uint16{1, 2, 3})
	for _, a := range []uint16{1, 2, 3} {
		assertResult(t, res.Values, a, batch.Result{})
	}
	if !errors.Is(res.LastErr, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", res.LastErr)
	}
	if ErrorCode(res.LastErr) != 1 {
		t.Fatalf("expected generic code 1, got %d", ErrorCode(res.LastErr))
	}
}

func TestPoll_ConnectFailure(t *testing.T) {
	f := &countingFactory{err: errors.New("connection refused")}
	obs := &recordingObserver{}
	p := newPoller(t, Config{MaxConsecutive: 2}, f.factory, WithObserver(obs))

	res, err := p.Poll(context.Background(), []uint16{40001, 40002, 40007})
	if err != nil {
		t.Fatalf("connect failure must not surface as an error: %v", err)
	}

	if len(res.Values) != 3 {
		t.Fatalf("every address must resolve, got %v", res.Values)
	}
	for _, a := range []uint16{40001, 40002, 40007} {
		assertResult(t, res.Values, a, batch.Result{})
	}
	if !errors.Is(res.LastErr, ErrConnect) || res.Errors != 1 {
		t.Fatalf("expected one ErrConnect, got %+v", res)
	}
	if p.State() != Done {
		t.Fatalf("expected Done, got %v", p.State())
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != OutcomeConnect {
		t.Fatalf("observer: %v", obs.outcomes)
	}
}

func TestPoll_MismatchedReplyIsDropped(t *testing.T) {
	cli := newFakeClient(map[uint16]uint16{1: 1, 2: 2})
	cli.short = true
	f := &countingFactory{client: cli}
	p := newPoller(t, Config{MaxConsecutive: 10}, f.factory)

	res, err := p.Poll(context.Background(), []uint16{1, 2})
	if err != nil {
		t.Fatalf("Poll err=%v", err)
	}

	assertResult(t, res.Values, 1, batch.Result{})
	assertResult(t, res.Values, 2, batch.Result{})
	if !errors.Is(res.LastErr, ErrProtocolMismatch) {
		t.Fatalf("expected ErrProtocolMismatch, got %v", res.LastErr)
	}
}

func TestPoll_ReusesSession(t *testing.T) {
	cli := newFakeClient(map[uint16]uint16{1: 1})
	f := &countingFactory{client: cli}
	p := newPoller(t, Config{}, f.factory)

	for i := 0; i < 3; i++ {
		if _, err := p.Poll(context.Background(), []uint16{1}); err != nil {
			t.Fatalf("Poll err=%v", err)
		}
	}
	if f.calls != 1 {
		t.Fatalf("healthy session should be reused, factory calls=%d", f.calls)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close err=%v", err)
	}
	if !cli.closed {
		t.Fatalf("Close should close the session")
	}
}

func TestPoll_EmptyAddressListDoesNoIO(t *testing.T) {
	f := &countingFactory{err: errors.New("must not dial")}
	p := newPoller(t, Config{}, f.factory)

	res, err := p.Poll(context.Background(), nil)
	if err != nil {
		t.Fatalf("Poll err=%v", err)
	}
	if f.calls != 0 || len(res.Values) != 0 {
		t.Fatalf("unexpected I/O: calls=%d values=%v", f.calls, res.Values)
	}
}

func TestPoll_CancelMidTransaction(t *testing.T) {
	cli := newFakeClient(map[uint16]uint16{1: 1})
	cli.block = make(chan struct{})
	defer close(cli.block)

	f := &countingFactory{client: cli}
	p := newPoller(t, Config{}, f.factory)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Poll(ctx, []uint16{1})
		done <- err
	}()

	// wait for the read to be in flight
	deadline := time.Now().Add(2 * time.Second)
	for len(cli.readLog()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("read never issued")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Poll did not return after cancel")
	}

	if p.State() != Idle {
		t.Fatalf("aborted cycle should leave poller idle, got %v", p.State())
	}
}
