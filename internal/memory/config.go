package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"photoshelf/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. The rest stays free for libvips, exiftool and ffmpeg.
const DefaultMemoryRatio = 0.80

// ConfigResult describes where the Go memory limit came from.
type ConfigResult struct {
	// Configured is true when a limit is in effect.
	Configured bool
	// Source is "GOMEMLIMIT", "MEMORY_LIMIT" or "none".
	Source string
	// ContainerLimit is MEMORY_LIMIT in bytes, if it was used.
	ContainerLimit int64
	// GoMemLimit is the limit now set on the runtime.
	GoMemLimit int64
	// Ratio is the MEMORY_RATIO applied to ContainerLimit.
	Ratio float64
}

// ConfigureFromEnv sets the Go memory limit. Call it before the image
// backend starts.
//
//   - GOMEMLIMIT: if set, the runtime already applied it and it wins
//   - MEMORY_LIMIT: container limit in bytes, e.g. from the Downward API
//   - MEMORY_RATIO: share of MEMORY_LIMIT for the heap (default 0.80)
func ConfigureFromEnv() ConfigResult {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		logging.Info("Memory limit from GOMEMLIMIT=%s", env)
		limit := debug.SetMemoryLimit(-1)
		if limit <= 0 || limit == math.MaxInt64 {
			return ConfigResult{Source: "none"}
		}
		return ConfigResult{Configured: true, Source: "GOMEMLIMIT", GoMemLimit: limit}
	}

	container, ok := containerLimit()
	if !ok {
		return ConfigResult{Source: "none"}
	}
	ratio := parseRatio(os.Getenv("MEMORY_RATIO"))
	limit := int64(float64(container) * ratio)
	debug.SetMemoryLimit(limit)

	logging.Info("Memory limit %s (%.0f%% of the %s container limit)",
		formatBytes(limit), ratio*100, formatBytes(container))
	return ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: container,
		GoMemLimit:     limit,
		Ratio:          ratio,
	}
}

func containerLimit() (int64, bool) {
	env := os.Getenv("MEMORY_LIMIT")
	if env == "" {
		logging.Debug("MEMORY_LIMIT not set, leaving the Go memory limit alone")
		return 0, false
	}
	n, err := strconv.ParseInt(env, 10, 64)
	if err != nil || n <= 0 {
		logging.Warn("Ignoring MEMORY_LIMIT %q: want a positive byte count", env)
		return 0, false
	}
	return n, true
}

func parseRatio(s string) float64 {
	if s == "" {
		return DefaultMemoryRatio
	}
	r, err := strconv.ParseFloat(s, 64)
	if err != nil || r <= 0 || r > 1 {
		logging.Warn("MEMORY_RATIO %q must be in (0, 1], using %.2f", s, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return r
}

// formatBytes renders b with a binary unit, e.g. "1.5 KiB".
func formatBytes(b int64) string {
	if b < 1024 {
		return strconv.FormatInt(b, 10) + " B"
	}
	v, unit := float64(b)/1024, 0
	for v >= 1024 && unit < 5 {
		v /= 1024
		unit++
	}
	return strconv.FormatFloat(v, 'f', 1, 64) + " " + string("KMGTPE"[unit]) + "iB"
}
