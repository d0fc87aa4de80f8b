package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photoshelf/internal/app"
	"photoshelf/internal/filesystem"
	"photoshelf/internal/handlers"
	"photoshelf/internal/logging"
	"photoshelf/internal/memory"
	"photoshelf/internal/metrics"
	"photoshelf/internal/middleware"
	"photoshelf/internal/startup"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	configFile := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML configuration file")
	flag.Parse()

	// Set GOMEMLIMIT before anything allocates large buffers
	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig(*configFile)
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	metrics.InitializeMetrics()
	build := startup.GetBuildInfo()
	metrics.AppInfo.WithLabelValues(build.Version, build.Commit, build.GoVersion).Set(1)

	a, err := app.Open(context.Background(), config)
	if err != nil {
		startup.LogFatal("Startup failed: %v", err)
	}

	memConfig := memory.DefaultConfig()
	if memResult.Configured {
		memConfig.MemoryLimitBytes = memResult.GoMemLimit
	}
	monitor := memory.NewMonitor(memConfig)
	monitor.Start()

	collector := metrics.NewCollector(a.DB, time.Minute)
	collector.Start()

	h := handlers.New(a.Pipeline, a.Library, a.DB, config)
	h.SetGate(monitor)

	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           wrapMiddleware(router, config),
		ReadHeaderTimeout: 10 * time.Second,
		// Uploads of large videos need more than the usual request budget
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(h, config.MetricsPort)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		handleShutdown(srv, metricsSrv, collector, monitor, a)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	// Photos
	api.HandleFunc("/photos", h.Upload).Methods("POST")
	api.HandleFunc("/photos/{id}", h.GetPhoto).Methods("GET")
	api.HandleFunc("/photos/{id}", h.DeletePhoto).Methods("DELETE")
	api.HandleFunc("/photos/{id}/album", h.SetPhotoAlbum).Methods("PUT")
	api.HandleFunc("/photos/{id}/star", h.ToggleStar).Methods("POST")
	api.HandleFunc("/photos/{id}/public", h.TogglePublic).Methods("POST")
	api.HandleFunc("/photos/{id}/duplicate", h.DuplicatePhoto).Methods("POST")
	api.HandleFunc("/photos/{id}/archive", h.GetArchive).Methods("GET")
	api.HandleFunc("/photos/{id}/{field}", h.SetPhotoField).Methods("PUT")

	// Stored originals and variants
	r.PathPrefix("/uploads/").Handler(h.UploadsHandler()).Methods("GET", "HEAD")

	return r
}

func wrapMiddleware(router http.Handler, config *startup.Config) http.Handler {
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)

	return middleware.Compression(middleware.DefaultCompressionConfig())(handler)
}

func newMetricsServer(h *handlers.Handlers, port string) *http.Server {
	m := http.NewServeMux()
	m.Handle("/metrics", h.MetricsHandler())
	m.HandleFunc("/health", h.LivenessCheck)

	return &http.Server{
		Addr:         ":" + port,
		Handler:      m,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

func handleShutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, monitor *memory.Monitor, a *app.App) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Releasing paused uploads")
	monitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownStep("Closing database and image backend")
	if err := a.Close(); err != nil {
		logging.Warn("Close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownComplete()
}
