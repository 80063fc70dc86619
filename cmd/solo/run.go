package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arloliu/solo"
	"github.com/arloliu/solo/internal/logging"
	"github.com/arloliu/solo/internal/metrics"
	"github.com/arloliu/solo/store"
	"github.com/arloliu/solo/types"
)

const shutdownTimeout = 5 * time.Second

// run opens the store, starts the agent and blocks until ctx is cancelled.
func run(ctx context.Context, s settings, logOut io.Writer) error {
	log, err := newLogger(s.Log, logOut)
	if err != nil {
		return err
	}

	leases, closeStore, err := store.Open(ctx, s.Store, s.Election.Namespace, log)
	if err != nil {
		return fmt.Errorf("failed to open %s lease store: %w", s.Store.Type, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := closeStore(closeCtx); err != nil {
			log.Warn("failed to close lease store", "error", err)
		}
	}()

	opts := []solo.Option{solo.WithLogger(log)}

	var reg *prometheus.Registry
	if s.MetricsAddress != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, solo.WithMetrics(metrics.NewPrometheus(reg, "solo")))
	}

	agent, err := solo.NewAgent(s.Election, leases, opts...)
	if err != nil {
		return err
	}

	if reg != nil {
		srv, addr, err := serveMetrics(s.MetricsAddress, newMetricsHandler(reg, agent.IsLeader), log)
		if err != nil {
			return err
		}
		log.Info("serving metrics", "address", addr.String())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	log.Info("solo starting",
		"version", Version,
		"store", string(s.Store.Type),
		"identity", s.Election.Identity,
	)

	return agent.Run(ctx)
}

func newLogger(cfg logSettings, w io.Writer) (types.Logger, error) {
	if cfg.Format == formatKlog {
		return logging.NewKlog(), nil
	}

	return logging.NewSlogWriter(w, cfg.Format, cfg.Level)
}

// newMetricsHandler serves Prometheus metrics and a leader probe that
// answers 200 on the leader and 503 elsewhere.
func newMetricsHandler(reg *prometheus.Registry, isLeader func() bool) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/leader", func(w http.ResponseWriter, _ *http.Request) {
		if isLeader() {
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, "leader\n")

			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "follower\n")
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

func serveMetrics(addr string, handler http.Handler, log types.Logger) (*http.Server, net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()

	return srv, ln.Addr(), nil
}
