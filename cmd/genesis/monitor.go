package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/genesis-run/genesis/internal/config"
	"github.com/genesis-run/genesis/internal/monitoring"
	"github.com/genesis-run/genesis/internal/monitoring/wsbridge"
	"github.com/genesis-run/genesis/internal/telemetry"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the Monitoring Plane bridge: graph projection, WebSocket fan-out, and a /metrics endpoint",
	RunE:  runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := newLogger()

	t, err := buildTransport(ctx, cfg)
	if err != nil {
		return err
	}
	defer t.Close()

	var opts []monitoring.Option
	opts = append(opts, monitoring.WithLogger(logger), monitoring.WithRetention(cfg.GraphRetention))
	if cfg.BoltPath != "" {
		store, err := monitoring.NewBoltGraphStore(cfg.BoltPath)
		if err != nil {
			return wrapExit(2, err)
		}
		defer store.Close()
		opts = append(opts, monitoring.WithStore(store))
	}

	svc, err := monitoring.NewService(ctx, t, opts...)
	if err != nil {
		return wrapExit(3, err)
	}
	defer svc.Close()

	hub := wsbridge.NewHub(svc, logger)
	metrics := telemetry.NewPrometheusMetrics(nil)

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/graph", func(w http.ResponseWriter, r *http.Request) {
		nodes, edges, err := svc.Snapshot()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"nodes": nodes, "edges": edges})
	})

	server := &http.Server{Addr: cfg.WSAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "genesis monitor listening on %s (ws:/ws, metrics:/metrics, graph:/graph)\n", cfg.WSAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return wrapExit(1, err)
	}
	return nil
}
