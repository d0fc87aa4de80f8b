package memory

import (
	"runtime/debug"
	"testing"
)

// restoreMemoryLimit puts the runtime limit back after a test changed it.
func restoreMemoryLimit(t *testing.T) {
	t.Helper()
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })
}

func TestConfigureFromEnvNothingSet(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")
	restoreMemoryLimit(t)

	result := ConfigureFromEnv()
	if result.Configured || result.Source != "none" {
		t.Errorf("Expected unconfigured result, got %+v", result)
	}
}

func TestConfigureFromEnvMemoryLimit(t *testing.T) {
	tests := []struct {
		name      string
		limit     string
		ratio     string
		wantLimit int64
		wantRatio float64
	}{
		{"default ratio", "1000000000", "", 800000000, DefaultMemoryRatio},
		{"custom ratio", "1000000000", "0.5", 500000000, 0.5},
		{"ratio out of range", "1000000000", "1.5", 800000000, DefaultMemoryRatio},
		{"ratio not a number", "1000000000", "half", 800000000, DefaultMemoryRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", tt.limit)
			t.Setenv("MEMORY_RATIO", tt.ratio)
			restoreMemoryLimit(t)

			result := ConfigureFromEnv()
			if !result.Configured || result.Source != "MEMORY_LIMIT" {
				t.Fatalf("Expected MEMORY_LIMIT configuration, got %+v", result)
			}
			if result.GoMemLimit != tt.wantLimit {
				t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, tt.wantLimit)
			}
			if result.Ratio != tt.wantRatio {
				t.Errorf("Ratio = %f, want %f", result.Ratio, tt.wantRatio)
			}
			if got := debug.SetMemoryLimit(-1); got != tt.wantLimit {
				t.Errorf("runtime limit = %d, want %d", got, tt.wantLimit)
			}
		})
	}
}

func TestConfigureFromEnvInvalidMemoryLimit(t *testing.T) {
	for _, value := range []string{"lots", "-5", "0"} {
		t.Run(value, func(t *testing.T) {
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", value)
			restoreMemoryLimit(t)

			if result := ConfigureFromEnv(); result.Configured {
				t.Errorf("Expected %q to be ignored, got %+v", value, result)
			}
		})
	}
}

func TestConfigureFromEnvGOMEMLIMITWins(t *testing.T) {
	restoreMemoryLimit(t)
	debug.SetMemoryLimit(512 << 20)
	t.Setenv("GOMEMLIMIT", "512MiB")
	t.Setenv("MEMORY_LIMIT", "1000000000")

	result := ConfigureFromEnv()
	if result.Source != "GOMEMLIMIT" || result.GoMemLimit != 512<<20 {
		t.Errorf("Expected GOMEMLIMIT to win, got %+v", result)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{64 << 20, "64.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
