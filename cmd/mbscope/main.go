// cmd/mbscope/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-scope/internal/config"
	"github.com/tamzrod/modbus-scope/internal/logging"
	"github.com/tamzrod/modbus-scope/internal/metrics"
	"github.com/tamzrod/modbus-scope/internal/orchestrator"
	"github.com/tamzrod/modbus-scope/internal/poller"
	"github.com/tamzrod/modbus-scope/internal/publish"
	"github.com/tamzrod/modbus-scope/internal/status"
	"github.com/tamzrod/modbus-scope/internal/writer"
)

func main() {
	boot := logging.New(os.Stderr, "info", "console")

	if len(os.Args) < 2 {
		boot.Fatal().Msg("usage: mbscope <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Environment (.env is optional)
	// --------------------

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		boot.Fatal().Err(err).Msg(".env load failed")
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		boot.Fatal().Err(err).Msg("config load failed")
	}

	config.ApplyEnv(cfg)

	if err := config.Validate(cfg); err != nil {
		boot.Fatal().Err(err).Msg("config validation failed")
	}

	config.Normalize(cfg)

	log := logging.New(os.Stderr, cfg.Scope.Log.Level, cfg.Scope.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Metrics (optional)
	// --------------------

	var (
		m   *metrics.Set
		obs poller.Observer
	)
	if addr := cfg.Scope.Metrics.Listen; addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		obs = m

		srv := &http.Server{Addr: addr, Handler: metricsMux(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("listen", addr).Msg("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		log.Info().Str("listen", addr).Msg("metrics enabled")
	}

	// --------------------
	// Orchestrator (one poller per enabled connection)
	// --------------------

	o, err := orchestrator.Build(cfg, log, obs)
	if err != nil {
		log.Fatal().Err(err).Msg("orchestrator build failed")
	}
	defer o.Close()

	// --------------------
	// Downstream: MQTT publisher (optional)
	// --------------------

	var pub *publish.Publisher
	if mc := cfg.Scope.Publish.MQTT; mc != nil {
		pub, err = publish.Connect(*mc, o.Descriptors(), logging.Component(log, "publish"))
		if err != nil {
			log.Fatal().Err(err).Msg("mqtt connect failed")
		}
		defer pub.Close()
	}

	// --------------------
	// Downstream: connection status blocks (optional per connection)
	// --------------------

	statusWriters, closeStatus, err := writer.BuildStatusWriters(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("status writers failed")
	}
	defer closeStatus()

	statusLog := logging.Component(log, "status")
	trackers := make(map[uint8]*status.Tracker, len(statusWriters))
	for id, sw := range statusWriters {
		trackers[id] = status.NewTracker()

		// Full block write on start (identity re-assert).
		if err := sw.WriteStatus(trackers[id].Snapshot()); err != nil {
			statusLog.Warn().Err(err).Uint8("connection", id).Msg("status write failed on start")
		}
	}

	// --------------------
	// Run
	// --------------------

	out := make(chan orchestrator.CycleResult)
	go o.Run(ctx, out)

	log.Info().
		Int("connections", len(cfg.Scope.Connections)).
		Int("registers", len(cfg.Scope.Registers)).
		Dur("interval", cfg.Scope.Poll.Interval()).
		Msg("mbscope started")

	// Consumer (runner-owned state + 1Hz seconds ticker)
	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return

		case res := <-out:
			if m != nil {
				m.Cycle(res.Took, res.Values)
			}

			if pub != nil {
				if err := pub.Publish(res); err != nil {
					log.Warn().Err(err).Str("cycle", res.ID.String()).Msg("publish failed")
				}
			}

			for _, cs := range res.Connections {
				tr, ok := trackers[cs.ConnectionID]
				if !ok {
					continue
				}
				changed := tr.Observe(status.Observation{
					Enabled:   cs.Enabled,
					Successes: cs.CycleSuccesses,
					Errors:    cs.CycleErrors,
					Err:       cs.LastErr,
				})
				if changed {
					writeStatus(statusLog, cs.ConnectionID, statusWriters[cs.ConnectionID], tr)
				}
			}

		case <-secTicker.C:
			// seconds_in_error increments on the 1Hz ticker only.
			for id, tr := range trackers {
				if tr.Tick() {
					writeStatus(statusLog, id, statusWriters[id], tr)
				}
			}
		}
	}
}

func writeStatus(log zerolog.Logger, id uint8, sw writer.StatusWriter, tr *status.Tracker) {
	if err := sw.WriteStatus(tr.Snapshot()); err != nil {
		log.Warn().Err(err).Uint8("connection", id).Msg("status write failed")
	}
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}
