package metrics

import (
	"context"
	"sync"
	"time"

	"photoshelf/internal/logging"
)

// Stats are the library totals exported as gauges and by /api/stats.
type Stats struct {
	TotalImages int `json:"totalImages"`
	TotalVideos int `json:"totalVideos"`
	UniqueFiles int `json:"uniqueFiles"`
}

// StatsProvider reports the current library totals.
type StatsProvider interface {
	GetStats(ctx context.Context) (Stats, error)
}

// Collector refreshes the library gauges on a fixed interval. Counting is a
// table scan, so it runs in the background rather than on every scrape.
type Collector struct {
	provider StatsProvider
	interval time.Duration
	timeout  time.Duration

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewCollector creates a collector; call Start to begin sampling.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		interval: interval,
		timeout:  10 * time.Second,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start samples once immediately and then every interval.
func (c *Collector) Start() {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			c.refresh()
			select {
			case <-ticker.C:
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop ends sampling and waits for a running refresh to finish. It is safe
// to call more than once, but only after Start.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

func (c *Collector) refresh() {
	if c.provider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	stats, err := c.provider.GetStats(ctx)
	if err != nil {
		logging.Warn("Refreshing library gauges failed: %v", err)
		return
	}
	PhotosTotal.WithLabelValues("image").Set(float64(stats.TotalImages))
	PhotosTotal.WithLabelValues("video").Set(float64(stats.TotalVideos))
	StoredFilesTotal.Set(float64(stats.UniqueFiles))
	logging.Debug("Library gauges: %d images, %d videos, %d stored files",
		stats.TotalImages, stats.TotalVideos, stats.UniqueFiles)
}
