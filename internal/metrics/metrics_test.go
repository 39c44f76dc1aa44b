// internal/metrics/metrics_test.go
package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tamzrod/modbus-scope/internal/batch"
	"github.com/tamzrod/modbus-scope/internal/poller"
	"github.com/tamzrod/modbus-scope/internal/resolve"
)

func TestTransactionCounters(t *testing.T) {
	s := New(prometheus.NewRegistry())

	read := batch.Read{Start: 40001, Count: 2}
	s.Transaction(0, read, poller.OutcomeOK, time.Millisecond)
	s.Transaction(0, read, poller.OutcomeOK, time.Millisecond)
	s.Transaction(0, read, poller.OutcomeTimeout, time.Second)
	s.Transaction(1, batch.Read{}, poller.OutcomeConnect, 0)

	if got := testutil.ToFloat64(s.transactions.WithLabelValues("0", "ok")); got != 2 {
		t.Fatalf("ok count: got %v", got)
	}
	if got := testutil.ToFloat64(s.transactions.WithLabelValues("0", "timeout")); got != 1 {
		t.Fatalf("timeout count: got %v", got)
	}
	if got := testutil.ToFloat64(s.transactions.WithLabelValues("1", "connect")); got != 1 {
		t.Fatalf("connect count: got %v", got)
	}
}

func TestCycleGauges(t *testing.T) {
	s := New(prometheus.NewRegistry())

	s.Cycle(10*time.Millisecond, []resolve.Value{{Value: 5020, Success: true}, {Value: 7, Success: true}})
	s.Cycle(10*time.Millisecond, []resolve.Value{{}, {Value: 8, Success: true}})

	if got := testutil.ToFloat64(s.cycles); got != 2 {
		t.Fatalf("cycles: got %v", got)
	}
	// failed reads keep the last good value but flag the failure
	if got := testutil.ToFloat64(s.values.WithLabelValues("0")); got != 5020 {
		t.Fatalf("value 0: got %v", got)
	}
	if got := testutil.ToFloat64(s.valueOK.WithLabelValues("0")); got != 0 {
		t.Fatalf("success 0: got %v", got)
	}
	if got := testutil.ToFloat64(s.values.WithLabelValues("1")); got != 8 {
		t.Fatalf("value 1: got %v", got)
	}
}
