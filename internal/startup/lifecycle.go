package startup

import (
	"time"

	"photoshelf/internal/logging"
)

// ServerConfig describes the listeners for LogServerStarted.
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the listening addresses once the server is up.
func LogServerStarted(config ServerConfig) {
	section("READY in %v", config.StartupDuration)
	logging.Info("  API:      http://0.0.0.0:%s/api", config.Port)
	logging.Info("  Uploads:  http://0.0.0.0:%s/uploads/", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:  http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("  Metrics:  DISABLED")
	}
	logging.Info("  Press Ctrl+C to stop")
	logging.Info("%s", rule)
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section("SHUTDOWN (%s)", signal)
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}
