package media

import (
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"time"

	"photoshelf/internal/filesystem"
	"photoshelf/internal/logging"
	"photoshelf/internal/mediatypes"
	"photoshelf/internal/metrics"
)

// Variant names a scaled copy and its bounding box. A zero bound is
// unconstrained.
type Variant struct {
	Kind      string
	Dir       string
	MaxWidth  int
	MaxHeight int
}

// FitWithin scales width x height into the bounding box keeping the aspect
// ratio. A zero maxWidth sizes by height alone; otherwise width drives and
// height takes over when the result would exceed a nonzero maxHeight.
func FitWithin(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	ratio := float64(width) / float64(height)

	if maxWidth == 0 {
		return roundPositive(float64(maxHeight) * ratio), maxHeight
	}

	h := float64(maxWidth) / ratio
	if maxHeight != 0 && h > float64(maxHeight) {
		return roundPositive(float64(maxHeight) * ratio), maxHeight
	}
	return maxWidth, roundPositive(h)
}

func roundPositive(f float64) int {
	n := int(math.Round(f))
	if n < 1 {
		return 1
	}
	return n
}

// fitsWithin reports whether the original is already inside the box.
func fitsWithin(width, height, maxWidth, maxHeight int) bool {
	return (maxWidth == 0 || width <= maxWidth) && (maxHeight == 0 || height <= maxHeight)
}

// Scaler writes downscaled copies of originals.
type Scaler struct {
	Backend  Backend
	Fallback Backend
}

// NewScaler returns a Scaler with the basic backend as fallback.
func NewScaler(backend Backend) *Scaler {
	s := &Scaler{Backend: backend}
	if backend.Name() != BackendBasic {
		s.Fallback = BasicBackend()
	}
	return s
}

// ScaledVariant writes {v.Dir}/{src.Name} when the original exceeds the
// variant's box. It reports whether a file was written. An unwritable
// output directory is logged and reported as false without error.
func (s *Scaler) ScaledVariant(ctx context.Context, src Source, v Variant) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := filesystem.CheckWritable(v.Dir); err != nil {
		logging.Warn("Skipped %s variant of %s, %s is not writable: %v", v.Kind, src.Name, v.Dir, err)
		metrics.DerivationsTotal.WithLabelValues(v.Kind, s.Backend.Name(), "skipped").Inc()
		return false, nil
	}
	if fitsWithin(src.Width, src.Height, v.MaxWidth, v.MaxHeight) {
		logging.Debug("No %s variant for %s, %dx%d already fits %dx%d",
			v.Kind, src.Name, src.Width, src.Height, v.MaxWidth, v.MaxHeight)
		metrics.DerivationsTotal.WithLabelValues(v.Kind, s.Backend.Name(), "skipped").Inc()
		return false, nil
	}
	if !mediatypes.IsSupportedImage(src.Type) {
		return false, fmt.Errorf("%w: %s", ErrUnsupportedFormat, src.Type)
	}

	start := time.Now()
	defer func() {
		metrics.DerivationDuration.WithLabelValues(v.Kind).Observe(time.Since(start).Seconds())
	}()

	width, height := FitWithin(src.Width, src.Height, v.MaxWidth, v.MaxHeight)
	dest := filepath.Join(v.Dir, src.Name)

	backend := s.Backend
	err := writeScaled(backend, src.Path, dest, width, height)
	if err != nil && s.Fallback != nil {
		logging.Warn("%s %s variant failed for %s, retrying with %s: %v",
			backend.Name(), v.Kind, src.Path, s.Fallback.Name(), err)
		metrics.DerivationsTotal.WithLabelValues(v.Kind, backend.Name(), "error").Inc()
		backend = s.Fallback
		err = writeScaled(backend, src.Path, dest, width, height)
	}
	if err != nil {
		metrics.DerivationsTotal.WithLabelValues(v.Kind, backend.Name(), "error").Inc()
		return false, fmt.Errorf("create %s variant: %w", v.Kind, err)
	}

	metrics.DerivationsTotal.WithLabelValues(v.Kind, backend.Name(), "success").Inc()
	return true, nil
}

func writeScaled(backend Backend, srcPath, dest string, width, height int) error {
	img, err := backend.Open(srcPath)
	if err != nil {
		return err
	}
	defer img.Close()

	if err := img.Resize(width, height); err != nil {
		return err
	}
	return filesystem.WriteAtomic(dest, func(w io.Writer) error {
		return img.EncodeJPEG(w, VariantQuality)
	})
}
