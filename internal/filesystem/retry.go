package filesystem

import (
	"errors"
	"os"
	"syscall"
	"time"

	"photoshelf/internal/logging"
)

// RetryConfig bounds the retries of StatWithRetry and OpenWithRetry. Only
// stale NFS file handles are retried; other errors return at once.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// VolumeResolver labels metrics for this call instead of the package
	// default.
	VolumeResolver *VolumeResolver
}

// DefaultRetryConfig allows three retries starting at 50ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

func (c RetryConfig) volume(path string) string {
	if c.VolumeResolver != nil {
		return c.VolumeResolver.Resolve(path)
	}
	return defaultResolver.Resolve(path)
}

// backoff returns the wait before retry n (zero based).
func (c RetryConfig) backoff(n int) time.Duration {
	d := c.InitialBackoff << n
	if d > c.MaxBackoff || d <= 0 {
		return c.MaxBackoff
	}
	return d
}

func isStale(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.ESTALE
}

func withRetry[T any](op, path string, config RetryConfig, fn func() (T, error)) (T, error) {
	start := time.Now()
	volume := config.volume(path)
	obs := observe()
	defer func() { obs.ObserveRetryDuration(op, volume, time.Since(start).Seconds()) }()

	result, err := fn()
	for n := 0; err != nil && isStale(err); n++ {
		obs.ObserveRetry(op, volume, RetryStale)
		if n == config.MaxRetries {
			logging.Warn("%s %s: still stale after %d retries: %v", op, path, n, err)
			obs.ObserveRetry(op, volume, RetryExhausted)
			return result, err
		}

		wait := config.backoff(n)
		logging.Debug("%s %s: stale file handle, retry %d/%d in %v", op, path, n+1, config.MaxRetries, wait)
		obs.ObserveRetry(op, volume, RetryAttempt)
		time.Sleep(wait)

		if result, err = fn(); err == nil {
			logging.Info("%s %s recovered on retry %d", op, path, n+1)
			obs.ObserveRetry(op, volume, RetryRecovered)
		}
	}
	return result, err
}

// StatWithRetry is os.Stat with retries on stale NFS handles.
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	return withRetry("stat", path, config, func() (os.FileInfo, error) {
		return os.Stat(path)
	})
}

// OpenWithRetry is os.Open with retries on stale NFS handles.
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	return withRetry("open", path, config, func() (*os.File, error) {
		return os.Open(path)
	})
}
