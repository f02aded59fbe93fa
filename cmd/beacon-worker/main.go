// cmd/beacon-worker/main.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"beacon/internal/app"
	"beacon/internal/common/camunda"
	"beacon/internal/common/config"
	"beacon/internal/common/logger"
	"beacon/internal/common/observability"
	"beacon/internal/notify/mail"
	sendmail "beacon/internal/workers/communication/send-mail"
	notifydue "beacon/internal/workers/scheduling/notify-due"
	senddigest "beacon/internal/workers/scheduling/send-digest"
)

// jobWorker is what every handler below exposes to main.
type jobWorker interface {
	Register(client zbc.Client)
	Close(ctx context.Context)
	GetTaskType() string
	IsEnabled() bool
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	zapLog.Info("Starting beacon worker...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	obs := observability.New(cfg.App.Name + "-worker")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Zeebe client with retry ---
	var zeebe *camunda.Client
	err = app.Retry(func() error {
		client, err := camunda.NewClient(camunda.ConfigFrom(cfg.Camunda))
		if err != nil {
			return err
		}
		zeebe = client
		return nil
	}, 10, 2*time.Second, log, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// The worker is the far end of the zeebe transport, so it always
	// delivers through a direct one.
	delivery := cfg.Mail.DeliveryConfig()
	mailer, err := mail.NewDelivery(ctx, delivery, log)
	if err != nil {
		zapLog.Fatal("mail transport failed", zap.Error(err))
	}

	handler, err := sendmail.NewHandler(sendmail.HandlerOptions{
		AppConfig: cfg,
		Mailer:    mailer,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create send-mail handler", zap.Error(err))
	}
	workers := []jobWorker{handler}

	// --- Scheduled sweeps, started by BPMN timers ---
	// These need the database, so they run only when configured.
	if cfg.Workers[notifydue.WorkerName].Enabled || cfg.Workers[senddigest.WorkerName].Enabled {
		a, err := app.Build(ctx, cfg, log, app.Options{Attempts: 15, Tracer: obs.Tracer()})
		if err != nil {
			zapLog.Fatal("application wiring failed", zap.Error(err))
		}
		defer a.Close()

		due, err := notifydue.NewHandler(notifydue.HandlerOptions{AppConfig: cfg, Sweeper: a.Opportunities, Logger: log})
		if err != nil {
			zapLog.Fatal("failed to create notify-due handler", zap.Error(err))
		}
		digest, err := senddigest.NewHandler(senddigest.HandlerOptions{AppConfig: cfg, Digester: a.Opportunities, Logger: log})
		if err != nil {
			zapLog.Fatal("failed to create send-digest handler", zap.Error(err))
		}
		workers = append(workers, due, digest)
	}

	for _, w := range workers {
		if !w.IsEnabled() {
			zapLog.Warn("Worker disabled by configuration", zap.String("taskType", w.GetTaskType()))
			continue
		}
		w.Register(zeebe.GetClient())
		zapLog.Info("Worker registered", zap.String("taskType", w.GetTaskType()))
	}
	zapLog.Info("Mail delivery configured", zap.String("delivery", delivery.Transport))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping worker...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Close(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	zapLog.Info("Worker stopped")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
