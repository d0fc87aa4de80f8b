package startup

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"photoshelf/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

var rule = strings.Repeat("-", 60)

// section starts a titled block of the startup log.
func section(format string, args ...interface{}) {
	logging.Info("")
	logging.Info("%s", rule)
	logging.Info(format, args...)
	logging.Info("%s", rule)
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	section("DATABASE")
	logging.Info("  [OK] Schema ready in %v", duration)
}

// LogImageBackendInit logs which image backend the pipeline will use
func LogImageBackendInit(requested, selected string) {
	section("IMAGE BACKEND")
	if requested != selected {
		logging.Info("  Requested %q, resolved to %s", requested, selected)
	}
	logging.Info("  [OK] Resizing with %s", selected)
}

// LogPipelineInit logs the ingestion pipeline settings
func LogPipelineInit(cfg *Config) {
	section("INGESTION PIPELINE")
	logging.Info("  Duplicates:       %s", choose(cfg.SkipDuplicates, "skipped", "reuse stored file"))
	logging.Info("  Imported sources: %s", choose(cfg.DeleteImported, "deleted", "kept"))
	logging.Info("  Variants:         medium %dx%d, small %dx%d",
		cfg.MediumMaxWidth, cfg.MediumMaxHeight, cfg.SmallMaxWidth, cfg.SmallMaxHeight)
	logging.Info("  Default license:  %s", orNone(cfg.DefaultLicense))
}

func printBanner() {
	fmt.Println(rule)
	fmt.Println(`           __          __            __         ______
    ____  / /_  ____  / /_____  _____/ /_  ___  / / __/
   / __ \/ __ \/ __ \/ __/ __ \/ ___/ __ \/ _ \/ / /_
  / /_/ / / / / /_/ / /_/ /_/ (__  ) / / /  __/ / __/
 / .___/_/ /_/\____/\__/\____/____/_/ /_/\___/_/_/
/_/`)
	fmt.Println(rule)
	logging.Info("  photoshelf %s (%s), built %s", Version, Commit, BuildTime)
	logging.Info("  Started %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	section("SYSTEM")
	procs, cpus := runtime.GOMAXPROCS(0), runtime.NumCPU()
	logging.Info("  %s on %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if procs < cpus {
		logging.Info("  GOMAXPROCS %d of %d CPUs (container limit)", procs, cpus)
	} else {
		logging.Info("  GOMAXPROCS %d", procs)
	}

	if !logging.IsDebugEnabled() {
		return
	}
	if host, err := os.Hostname(); err == nil {
		logging.Debug("  Host:        %s", host)
	}
	if wd, err := os.Getwd(); err == nil {
		logging.Debug("  Working dir: %s", wd)
	}
}

func enabledString(enabled bool) string {
	return choose(enabled, "ENABLED", "DISABLED")
}

func choose(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
