package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"photoshelf/internal/logging"
	"photoshelf/internal/metrics"
)

// Config holds memory management configuration
type Config struct {
	// MemoryLimitBytes is the limit usage is measured against. Zero falls
	// back to GOMEMLIMIT; with neither, the monitor never pauses.
	MemoryLimitBytes int64

	// CriticalWaterMark is the usage ratio at which ingestion pauses.
	CriticalWaterMark float64

	// HighWaterMark is the usage ratio a paused monitor must drop below
	// before ingestion resumes.
	HighWaterMark float64

	CheckInterval time.Duration
}

// DefaultConfig pauses at 85% of the limit and resumes below 70%.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Usage is the last sample taken by a Monitor.
type Usage struct {
	Alloc  int64   `json:"alloc"`
	Limit  int64   `json:"limit"`
	Ratio  float64 `json:"ratio"`
	Paused bool    `json:"paused"`
}

// Monitor samples heap usage and pauses ingestion while it is critical.
// Uploads and batch imports wait on it before entering the pipeline.
type Monitor struct {
	config    Config
	limit     int64
	readAlloc func() uint64

	stop     chan struct{}
	stopOnce sync.Once

	mu    sync.RWMutex
	alloc uint64
	// resume is non-nil while paused and is closed on recovery.
	resume chan struct{}
}

// NewMonitor resolves the limit and returns a stopped monitor.
func NewMonitor(config Config) *Monitor {
	limit := config.MemoryLimitBytes
	if limit == 0 {
		if l := debug.SetMemoryLimit(-1); l > 0 && l < 1<<62 {
			limit = l
		}
	}
	if limit > 0 {
		logging.Info("Ingestion pauses above %s heap (%.0f%% of %s)",
			formatBytes(int64(float64(limit)*config.CriticalWaterMark)), config.CriticalWaterMark*100, formatBytes(limit))
	} else {
		logging.Debug("No memory limit set, ingestion is never paused")
	}

	return &Monitor{
		config:    config,
		limit:     limit,
		readAlloc: heapAlloc,
		stop:      make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Start samples every CheckInterval until Stop. It does nothing without
// a limit.
func (m *Monitor) Start() {
	if m.limit <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.config.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sample()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends sampling and releases every waiter.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) sample() {
	alloc := m.readAlloc()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.alloc = alloc
	if m.limit <= 0 {
		return
	}
	ratio := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(ratio)

	paused := m.resume != nil
	switch {
	case !paused && ratio >= m.config.CriticalWaterMark:
		logging.Warn("Heap at %.1f%% of limit, pausing ingestion", ratio*100)
		m.resume = make(chan struct{})
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case paused && ratio < m.config.HighWaterMark:
		logging.Info("Heap back to %.1f%% of limit, resuming ingestion", ratio*100)
		close(m.resume)
		m.resume = nil
		metrics.MemoryPaused.Set(0)
	}
}

// WaitIfPaused blocks while ingestion is paused. It returns ctx's error if
// ctx ends first. A stopped monitor never blocks.
func (m *Monitor) WaitIfPaused(ctx context.Context) error {
	m.mu.RLock()
	resume := m.resume
	m.mu.RUnlock()
	if resume == nil {
		return nil
	}

	select {
	case <-resume:
		return nil
	case <-m.stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsPaused reports whether ingestion is paused
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resume != nil
}

// Usage returns the last sample.
func (m *Monitor) Usage() Usage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u := Usage{
		Alloc:  int64(min(m.alloc, uint64(1<<63-1))),
		Limit:  m.limit,
		Paused: m.resume != nil,
	}
	if m.limit > 0 {
		u.Ratio = float64(m.alloc) / float64(m.limit)
	}
	return u
}
