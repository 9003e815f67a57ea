// cmd/popup-stub/main.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"popup-client/internal/common/config"
	"popup-client/internal/common/logger"
	"popup-client/internal/common/observability"
	"popup-client/internal/stub"
)

func main() {
	zapLog := logger.New("info", "console")

	zapLog.Info("Starting popup stub server...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	// Rebuild the logger with the configured level/format/output.
	zapLog = logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	obs := observability.New("popup-stub")
	defer obs.Shutdown()

	if cfg.Stub.AuthToken == "" {
		zapLog.Warn("POPUP_AUTH_TOKEN not set, the stub will reject every request")
	}

	handler := stub.NewHandler(stub.NewConfig(cfg.Stub), obs, log)

	http.Handle("/popup", handler)
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	http.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Stub.ListenAddr}

	go func() {
		zapLog.Info("Popup stub listening",
			zap.String("addr", cfg.Stub.ListenAddr),
			zap.String("outcome", cfg.Stub.Outcome),
			zap.Int("simulated_delay_ms", cfg.Stub.SimulatedDelayMs),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("stub server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down stub server", zap.Error(err))
	}

	zapLog.Info("Popup stub stopped gracefully")
}
