package handlers

import (
	"context"
	"time"

	"photoshelf/internal/ingest"
	"photoshelf/internal/library"
	"photoshelf/internal/metrics"
	"photoshelf/internal/startup"
)

// Ingester runs uploads through the ingestion pipeline.
type Ingester interface {
	Add(ctx context.Context, up ingest.Upload, opts ingest.Options) (*ingest.Result, error)
}

// Store is the part of the database the handlers query directly.
type Store interface {
	Ping(ctx context.Context) error
	GetStats(ctx context.Context) (metrics.Stats, error)
}

// Gate holds back new ingestions while the process is short of memory.
type Gate interface {
	WaitIfPaused(ctx context.Context) error
}

type Handlers struct {
	pipeline   Ingester
	gate       Gate
	library    *library.Library
	store      Store
	uploadsDir string
	maxUpload  int64
	features   Features
	started    time.Time
}

func New(pipeline Ingester, lib *library.Library, store Store, config *startup.Config) *Handlers {
	return &Handlers{
		pipeline:   pipeline,
		library:    lib,
		store:      store,
		uploadsDir: config.UploadsDir,
		maxUpload:  config.MaxUploadBytes,
		features: Features{
			ImageBackend:    config.ImageBackend,
			Exiftool:        config.UseExiftool && config.ExiftoolAvailable,
			VideoThumbnails: config.FFmpegAvailable,
		},
		started: time.Now(),
	}
}

// SetGate makes uploads wait on g before they are ingested.
func (h *Handlers) SetGate(g Gate) {
	h.gate = g
}
