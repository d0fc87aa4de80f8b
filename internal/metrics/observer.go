package metrics

import "photoshelf/internal/filesystem"

type filesystemObserver struct{}

// NewFilesystemObserver records filesystem timings and stale-handle retries
// into this package's collectors. Install it with filesystem.SetObserver.
func NewFilesystemObserver() filesystem.Observer {
	return filesystemObserver{}
}

func (filesystemObserver) ObserveOperation(volume, operation string, seconds float64, err error) {
	FilesystemOperationDuration.WithLabelValues(volume, operation).Observe(seconds)
	if err != nil {
		FilesystemOperationErrors.WithLabelValues(volume, operation).Inc()
	}
}

func (filesystemObserver) ObserveRetry(operation, volume string, event filesystem.RetryEvent) {
	FilesystemRetryEvents.WithLabelValues(operation, volume, string(event)).Inc()
}

func (filesystemObserver) ObserveRetryDuration(operation, volume string, seconds float64) {
	FilesystemRetryDuration.WithLabelValues(operation, volume).Observe(seconds)
}
