package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/azure/controversy-analyzer/internal/analysis"
	"github.com/azure/controversy-analyzer/internal/config"
	"github.com/azure/controversy-analyzer/internal/models"
	"github.com/azure/controversy-analyzer/internal/monitoring"
	"github.com/azure/controversy-analyzer/internal/notifications"
	"github.com/azure/controversy-analyzer/internal/scheduler"
	"github.com/azure/controversy-analyzer/internal/sources"
	"github.com/azure/controversy-analyzer/internal/storage"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateWatch(); err != nil {
		log.Fatalf("Invalid watch configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Infof("Starting Controversy Analyzer bot for %d account(s)", len(cfg.WatchAccounts))

	reportStorage, err := newStorage(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}

	searcher := sources.NewTwitterSource(sources.TwitterConfig{
		BearerToken:         cfg.TwitterBearerToken,
		BaseURL:             cfg.TwitterBaseURL,
		RateLimitWait:       cfg.RateLimitWait,
		MaxRateLimitRetries: cfg.MaxRateLimitRetries,
	})

	classifier := analysis.NewClassifier(&analysis.Config{
		APIKey:        cfg.OpenAIAPIKey,
		BaseURL:       cfg.OpenAIBaseURL,
		Model:         cfg.OpenAIModel,
		Temperature:   float32(cfg.Temperature),
		MaxTokens:     cfg.MaxTokens,
		RateLimitWait: cfg.RateLimitWait,
	})

	// Initialize notification services
	var notifier notifications.NotificationInterface
	if notificationService := notifications.NewService(cfg); notificationService.Enabled() {
		notifier = notificationService
	} else {
		logrus.Warn("No notification channel configured, reports will only be archived")
	}

	// Initialize monitoring service
	monitoringService := monitoring.NewService(cfg, searcher, classifier, reportStorage, notifier)

	// Initialize scheduler
	schedulerService := scheduler.NewService(cfg, monitoringService)

	// Start scheduler
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Background runs outlive the request that triggered them, but not the process
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      newRouter(runCtx, monitoringService),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	cancelRuns()

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

// newStorage archives to Azure Blob Storage when an account is configured and to REPORT_DIR otherwise
func newStorage(cfg *config.Config) (storage.StorageInterface, error) {
	if cfg.StorageAccount != "" {
		return storage.NewAzureStorage(cfg.StorageAccount, cfg.StorageContainer)
	}

	logrus.Infof("AZURE_STORAGE_ACCOUNT not set, archiving reports under %s", cfg.ReportDir)
	return storage.NewLocalStorage(cfg.ReportDir), nil
}

// monitor is the part of the monitoring service the HTTP handlers use
type monitor interface {
	RunMonitoring(ctx context.Context) error
	GetMetrics() string
	LatestReport(ctx context.Context, username string) (*models.Report, error)
}

func newRouter(runCtx context.Context, monitoringService monitor) *mux.Router {
	router := mux.NewRouter()

	// Health check endpoint
	router.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Run metrics as JSON
	router.HandleFunc("/status", statusHandler(monitoringService)).Methods("GET")

	// Prometheus metrics
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Latest archived report of an account
	router.HandleFunc("/reports/{username}", latestReportHandler(monitoringService)).Methods("GET")

	// Manual trigger endpoint
	router.HandleFunc("/trigger", triggerHandler(runCtx, monitoringService)).Methods("POST")

	return router
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func statusHandler(monitoringService monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics := monitoringService.GetMetrics()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(metrics))
	}
}

func latestReportHandler(monitoringService monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := mux.Vars(r)["username"]

		rep, err := monitoringService.LatestReport(r.Context(), username)
		if err != nil {
			logrus.Debugf("No report for @%s: %v", username, err)
			http.Error(w, `{"error":"report not found"}`, http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(rep)
	}
}

func triggerHandler(runCtx context.Context, monitoringService monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			err := monitoringService.RunMonitoring(runCtx)
			if errors.Is(err, monitoring.ErrRunInProgress) {
				logrus.Warn("Manual monitoring trigger ignored, a run is already in progress")
				return
			}
			if err != nil {
				logrus.Errorf("Manual monitoring trigger failed: %v", err)
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"message":"Monitoring triggered successfully"}`))
	}
}
