package media

import (
	"fmt"
	"io"
	"sync"

	"photoshelf/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips initializes the libvips library
// This should be called once at startup, before SelectBackend
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Configure vips logging BEFORE Startup() to respect LOG_LEVEL
	vipsLogLevel, logHandler := vipsLogging(logging.GetLevel())
	vips.LoggingSettings(logHandler, vipsLogLevel)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,                // one worker thread per operation to bound memory
		MaxCacheMem:      50 * 1024 * 1024, // 50MB cache
		MaxCacheSize:     100,              // Max 100 operations cached
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// vipsLogging maps the application level onto libvips' own log filter.
func vipsLogging(level logging.LogLevel) (vips.LogLevel, func(string, vips.LogLevel, string)) {
	forward := func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}

	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo, forward
	case logging.LevelInfo:
		return vips.LogLevelWarning, forward
	case logging.LevelWarn:
		return vips.LogLevelError, forward
	case logging.LevelError:
		return vips.LogLevelCritical, forward
	default:
		return vips.LogLevelWarning, forward
	}
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// richBackend processes images with libvips.
type richBackend struct{}

func (richBackend) Name() string { return BackendRich }

func (richBackend) Open(path string) (Image, error) {
	if !IsVipsAvailable() {
		return nil, fmt.Errorf("libvips not available")
	}

	params := vips.NewImportParams()
	// Orientation is applied explicitly by the normalizer.
	params.AutoRotate.Set(false)

	ref, err := vips.LoadImageFromFile(path, params)
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	return &vipsImage{ref: ref}, nil
}

type vipsImage struct {
	ref *vips.ImageRef
}

func (v *vipsImage) Width() int  { return v.ref.Width() }
func (v *vipsImage) Height() int { return v.ref.Height() }

func (v *vipsImage) Crop(x, y, width, height int) error {
	if err := v.ref.ExtractArea(x, y, width, height); err != nil {
		return fmt.Errorf("vips crop failed: %w", err)
	}
	return nil
}

func (v *vipsImage) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid resize target %dx%d", width, height)
	}
	hScale := float64(width) / float64(v.ref.Width())
	vScale := float64(height) / float64(v.ref.Height())
	if err := v.ref.ResizeWithVScale(hScale, vScale, vips.KernelLanczos3); err != nil {
		return fmt.Errorf("vips resize failed: %w", err)
	}
	return nil
}

// Rotate converts counter-clockwise degrees to libvips' clockwise angles.
func (v *vipsImage) Rotate(degrees int) error {
	d, err := normalizeDegrees(degrees)
	if err != nil {
		return err
	}
	var angle vips.Angle
	switch d {
	case 0:
		return nil
	case 90:
		angle = vips.Angle270
	case 180:
		angle = vips.Angle180
	case 270:
		angle = vips.Angle90
	}
	if err := v.ref.Rotate(angle); err != nil {
		return fmt.Errorf("vips rotate failed: %w", err)
	}
	return nil
}

func (v *vipsImage) Flip(axis Axis) error {
	direction := vips.DirectionHorizontal
	if axis == Vertical {
		direction = vips.DirectionVertical
	}
	if err := v.ref.Flip(direction); err != nil {
		return fmt.Errorf("vips flip failed: %w", err)
	}
	return nil
}

func (v *vipsImage) EncodeJPEG(w io.Writer, quality int) error {
	if v.ref.HasAlpha() {
		if err := v.ref.Flatten(&vips.Color{R: 255, G: 255, B: 255}); err != nil {
			return fmt.Errorf("vips flatten failed: %w", err)
		}
	}
	buf, _, err := v.ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        quality,
		StripMetadata:  true,
		OptimizeCoding: true,
	})
	if err != nil {
		return fmt.Errorf("vips export failed: %w", err)
	}
	_, err = w.Write(buf)
	return err
}

func (v *vipsImage) Close() {
	v.ref.Close()
}
