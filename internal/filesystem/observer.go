package filesystem

// RetryEvent is one step of a retried operation.
type RetryEvent string

const (
	RetryStale     RetryEvent = "stale"
	RetryAttempt   RetryEvent = "retry"
	RetryRecovered RetryEvent = "recovered"
	RetryExhausted RetryEvent = "exhausted"
)

// RetryEvents lists every event, for pre-registering metric labels.
var RetryEvents = []RetryEvent{RetryStale, RetryAttempt, RetryRecovered, RetryExhausted}

// Observer receives timings for the operations in this package. The metrics
// package implements it; filesystem cannot import metrics directly.
type Observer interface {
	// ObserveOperation reports a write, rename, remove or stat under the
	// volume label ("big", "thumb", ...) of the path it touched.
	ObserveOperation(volume, operation string, seconds float64, err error)
	// ObserveRetry reports a stale-handle event from StatWithRetry or
	// OpenWithRetry.
	ObserveRetry(operation, volume string, event RetryEvent)
	// ObserveRetryDuration reports the total time spent in a retry loop.
	ObserveRetryDuration(operation, volume string, seconds float64)
}

var defaultObserver Observer

// SetObserver installs the package observer. Without one, nothing is
// recorded.
func SetObserver(o Observer) {
	defaultObserver = o
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, float64, error) {}
func (nopObserver) ObserveRetry(string, string, RetryEvent)         {}
func (nopObserver) ObserveRetryDuration(string, string, float64)    {}

func observe() Observer {
	if defaultObserver == nil {
		return nopObserver{}
	}
	return defaultObserver
}
