// internal/metrics/metrics.go
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tamzrod/modbus-scope/internal/batch"
	"github.com/tamzrod/modbus-scope/internal/poller"
	"github.com/tamzrod/modbus-scope/internal/resolve"
)

// Set holds the collectors for one process. Register it once.
type Set struct {
	transactions *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	cycles       prometheus.Counter
	cycleTime    prometheus.Histogram
	values       *prometheus.GaugeVec
	valueOK      *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Set {
	s := &Set{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mbscope",
			Name:      "transactions_total",
			Help:      "Read transactions by connection and outcome.",
		}, []string{"connection", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mbscope",
			Name:      "transaction_seconds",
			Help:      "Read transaction round-trip time.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"connection"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mbscope",
			Name:      "cycles_total",
			Help:      "Completed poll cycles.",
		}),
		cycleTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mbscope",
			Name:      "cycle_seconds",
			Help:      "Wall time of a complete poll cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mbscope",
			Name:      "register_value",
			Help:      "Last resolved value per configured register.",
		}, []string{"index"}),
		valueOK: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mbscope",
			Name:      "register_success",
			Help:      "1 if the last read of the register succeeded.",
		}, []string{"index"}),
	}

	reg.MustRegister(s.transactions, s.latency, s.cycles, s.cycleTime, s.values, s.valueOK)
	return s
}

// Transaction implements poller.Observer.
func (s *Set) Transaction(connectionID uint8, _ batch.Read, outcome poller.Outcome, took time.Duration) {
	conn := strconv.Itoa(int(connectionID))
	s.transactions.WithLabelValues(conn, string(outcome)).Inc()
	if outcome != poller.OutcomeConnect {
		s.latency.WithLabelValues(conn).Observe(took.Seconds())
	}
}

// Cycle records a completed cycle and its resolved values, by descriptor index.
func (s *Set) Cycle(took time.Duration, values []resolve.Value) {
	s.cycles.Inc()
	s.cycleTime.Observe(took.Seconds())

	for i, v := range values {
		idx := strconv.Itoa(i)
		if v.Success {
			s.values.WithLabelValues(idx).Set(v.Value)
			s.valueOK.WithLabelValues(idx).Set(1)
		} else {
			s.valueOK.WithLabelValues(idx).Set(0)
		}
	}
}
