// Package app assembles the ingestion components from a loaded
// configuration. The HTTP server and the import command share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"photoshelf/internal/content"
	"photoshelf/internal/database"
	"photoshelf/internal/filesystem"
	"photoshelf/internal/ingest"
	"photoshelf/internal/library"
	"photoshelf/internal/logging"
	"photoshelf/internal/media"
	"photoshelf/internal/metadata"
	"photoshelf/internal/startup"
)

// App holds the wired components.
type App struct {
	Config   *startup.Config
	DB       *database.Database
	Store    *content.Store
	Backend  media.Backend
	Pipeline *ingest.Pipeline
	Library  *library.Library
}

// Open starts the image backend, opens the database and builds the
// pipeline and library on top of them.
func Open(ctx context.Context, cfg *startup.Config) (*App, error) {
	if cfg.ImageBackend != media.BackendBasic {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable: %v", err)
		}
	}
	backend, err := media.SelectBackend(cfg.ImageBackend)
	if err != nil {
		media.ShutdownVips()
		return nil, fmt.Errorf("%w: %w", startup.ErrConfig, err)
	}
	startup.LogImageBackendInit(cfg.ImageBackend, backend.Name())

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"big":      cfg.BigDir,
		"medium":   cfg.MediumDir,
		"small":    cfg.SmallDir,
		"thumb":    cfg.ThumbDir,
		"database": cfg.DatabaseDir,
	}))

	dbStart := time.Now()
	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		media.ShutdownVips()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	a := &App{Config: cfg, DB: db, Backend: backend}
	a.Store = content.NewStore(cfg.BigDir, db, cfg.DeleteImported)

	still := media.NewStillThumbnailer(cfg.ThumbDir, backend)
	a.Pipeline = ingest.New(ingest.Config{
		SkipDuplicates: cfg.SkipDuplicates,
		Medium:         media.Variant{Kind: "medium", Dir: cfg.MediumDir, MaxWidth: cfg.MediumMaxWidth, MaxHeight: cfg.MediumMaxHeight},
		Small:          media.Variant{Kind: "small", Dir: cfg.SmallDir, MaxWidth: cfg.SmallMaxWidth, MaxHeight: cfg.SmallMaxHeight},
	}, ingest.Deps{
		Store:      a.Store,
		Repo:       db,
		Extractor:  metadata.NewExtractor(cfg.UseExiftool && cfg.ExiftoolAvailable, cfg.ToolTimeout),
		Normalizer: media.NewNormalizer(backend),
		Thumbnailers: media.Thumbnailers{
			Still: still,
			Video: media.NewVideoThumbnailer(still, cfg.ToolTimeout),
		},
		Scaler: media.NewScaler(backend),
	})
	a.Library = library.New(db, a.Store, library.Dirs{
		Big:    cfg.BigDir,
		Medium: cfg.MediumDir,
		Small:  cfg.SmallDir,
		Thumb:  cfg.ThumbDir,
	}, cfg.DefaultLicense)

	startup.LogPipelineInit(cfg)
	return a, nil
}

// Close releases the database and the image backend.
func (a *App) Close() error {
	var errs []error
	if err := a.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	media.ShutdownVips()
	return errors.Join(errs...)
}
