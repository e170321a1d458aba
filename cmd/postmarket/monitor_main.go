package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/insilicare/postmarket/internal/telemetry"
)

// maybeStartMonitor serves /health and /metrics while a long evaluation is
// in flight. Returns a stop function; a no-op when no address is configured.
func maybeStartMonitor(cmd *cobra.Command, tel *telemetry.Metrics) func() {
	addr, _ := cmd.Flags().GetString("metrics-addr")
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", tel.Handler())

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("monitor endpoint listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("monitor endpoint failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
}
