package metrics

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeProvider struct {
	calls atomic.Int32
	stats Stats
	err   error
}

func (f *fakeProvider) GetStats(context.Context) (Stats, error) {
	f.calls.Add(1)
	return f.stats, f.err
}

func TestCollectorRefreshesGauges(t *testing.T) {
	p := &fakeProvider{stats: Stats{TotalImages: 7, TotalVideos: 2, UniqueFiles: 8}}
	c := NewCollector(p, time.Hour)
	c.Start()
	c.Stop()
	c.Stop()

	if p.calls.Load() != 1 {
		t.Fatalf("Expected one refresh before Stop, got %d", p.calls.Load())
	}
	if got := testutil.ToFloat64(PhotosTotal.WithLabelValues("image")); got != 7 {
		t.Errorf("image gauge = %v, want 7", got)
	}
	if got := testutil.ToFloat64(PhotosTotal.WithLabelValues("video")); got != 2 {
		t.Errorf("video gauge = %v, want 2", got)
	}
	if got := testutil.ToFloat64(StoredFilesTotal); got != 8 {
		t.Errorf("stored files gauge = %v, want 8", got)
	}
}

func TestCollectorKeepsGaugesOnError(t *testing.T) {
	StoredFilesTotal.Set(3)
	c := NewCollector(&fakeProvider{err: errors.New("database is locked")}, time.Hour)
	c.Start()
	c.Stop()

	if got := testutil.ToFloat64(StoredFilesTotal); got != 3 {
		t.Errorf("stored files gauge = %v, want it left at 3", got)
	}
}

func TestCollectorTicks(t *testing.T) {
	p := &fakeProvider{}
	c := NewCollector(p, 5*time.Millisecond)
	c.Start()
	defer c.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for p.calls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected repeated refreshes, got %d", p.calls.Load())
		}
		time.Sleep(time.Millisecond)
	}
}
