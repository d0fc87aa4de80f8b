// Package tools runs the external programs the pipeline depends on
// (exiftool, ffprobe, ffmpeg) with a deadline and duration metrics.
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"photoshelf/internal/logging"
	"photoshelf/internal/metrics"
)

// DefaultTimeout bounds a single tool invocation when the caller passes zero.
const DefaultTimeout = 30 * time.Second

// ErrNotInstalled is returned when the program is not on PATH.
var ErrNotInstalled = errors.New("tool not installed")

// ErrTimeout is returned when the program did not finish before its deadline.
var ErrTimeout = errors.New("tool timed out")

var (
	lookupMu sync.Mutex
	lookups  = map[string]string{}
)

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// Path resolves name on PATH once and caches the answer, including misses.
func Path(name string) (string, error) {
	lookupMu.Lock()
	defer lookupMu.Unlock()

	if p, ok := lookups[name]; ok {
		if p == "" {
			return "", fmt.Errorf("%s: %w", name, ErrNotInstalled)
		}
		return p, nil
	}

	p, err := lookPath(name)
	if err != nil {
		lookups[name] = ""
		return "", fmt.Errorf("%s: %w", name, ErrNotInstalled)
	}
	lookups[name] = p
	return p, nil
}

// Available reports whether name is installed.
func Available(name string) bool {
	_, err := Path(name)
	return err == nil
}

// resetCache forgets previous lookups.
func resetCache() {
	lookupMu.Lock()
	lookups = map[string]string{}
	lookupMu.Unlock()
}

// Run executes name with args and returns its stdout. The process is killed
// when ctx ends or timeout elapses, whichever comes first.
func Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	path, err := Path(name)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	status := "success"
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		status = "timeout"
		err = fmt.Errorf("%s after %v: %w", name, timeout, ErrTimeout)
	case err != nil:
		status = "error"
		err = fmt.Errorf("%s failed: %w - %s", name, err, strings.TrimSpace(stderr.String()))
	}
	metrics.ExternalToolDuration.WithLabelValues(name, status).Observe(time.Since(start).Seconds())

	if err != nil {
		logging.Debug("%s %s: %v", name, strings.Join(args, " "), err)
		return nil, err
	}
	return stdout.Bytes(), nil
}
