package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"photoshelf/internal/filesystem"
	"photoshelf/internal/logging"
	"photoshelf/internal/mediatypes"
	"photoshelf/internal/metrics"
)

const (
	// ThumbSize is the edge of the square thumbnail; the 2x variant doubles it.
	ThumbSize = 200
	// VariantQuality is the JPEG quality of every derived file.
	VariantQuality = 90
)

// Source describes an imported original that derived files are built from.
type Source struct {
	Path string
	// Name is the canonical file name, e.g. "9e107d9d372bb6826bd81d3542a419d6.jpg".
	Name   string
	Type   string
	Width  int
	Height int
}

// ThumbName is the thumbnail reference stored on a record for a canonical
// file name.
func ThumbName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".jpeg"
}

// Thumb2xName is the file name of the double resolution thumbnail.
func Thumb2xName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + "@2x.jpeg"
}

// Thumbnailer produces the thumbnail pair for an original and returns the
// thumbnail reference.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, src Source) (string, error)
}

// Thumbnailers dispatches on media kind.
type Thumbnailers struct {
	Still Thumbnailer
	Video Thumbnailer
}

// For returns the thumbnailer for kind.
func (t Thumbnailers) For(kind mediatypes.Kind) Thumbnailer {
	if kind == mediatypes.KindVideo {
		return t.Video
	}
	return t.Still
}

// CropSquare returns the centered square of a width x height image.
// Portrait images keep their full width, everything else its full height.
func CropSquare(width, height int) (x, y, side int) {
	if width < height {
		return 0, (height - width) / 2, width
	}
	return (width - height) / 2, 0, height
}

// StillThumbnailer writes square JPEG thumbnails for still images.
type StillThumbnailer struct {
	Dir     string
	Backend Backend
	// Fallback is used when Backend fails; nil disables the retry.
	Fallback Backend
}

// NewStillThumbnailer returns a thumbnailer writing into dir. The basic
// backend is the fallback unless backend already is the basic one.
func NewStillThumbnailer(dir string, backend Backend) *StillThumbnailer {
	s := &StillThumbnailer{Dir: dir, Backend: backend}
	if backend.Name() != BackendBasic {
		s.Fallback = BasicBackend()
	}
	return s
}

// Thumbnail writes {name}.jpeg and {name}@2x.jpeg into the thumbnail
// directory.
func (s *StillThumbnailer) Thumbnail(ctx context.Context, src Source) (string, error) {
	if !mediatypes.IsSupportedImage(src.Type) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, src.Type)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	start := time.Now()
	defer func() {
		metrics.DerivationDuration.WithLabelValues("thumb").Observe(time.Since(start).Seconds())
	}()

	backend := s.Backend
	err := s.writePair(backend, src)
	if err != nil && s.Fallback != nil {
		logging.Warn("%s thumbnail failed for %s, retrying with %s: %v",
			backend.Name(), src.Path, s.Fallback.Name(), err)
		metrics.DerivationsTotal.WithLabelValues("thumb", backend.Name(), "error").Inc()
		backend = s.Fallback
		err = s.writePair(backend, src)
	}
	if err != nil {
		metrics.DerivationsTotal.WithLabelValues("thumb", backend.Name(), "error").Inc()
		return "", err
	}

	metrics.DerivationsTotal.WithLabelValues("thumb", backend.Name(), "success").Inc()
	return ThumbName(src.Name), nil
}

// writePair produces both sizes from one decode. With the rich backend a
// failed write of one size is logged and the other size still attempted;
// with the basic backend it is an error.
func (s *StillThumbnailer) writePair(backend Backend, src Source) error {
	img, err := backend.Open(src.Path)
	if err != nil {
		return err
	}
	defer img.Close()

	x, y, side := CropSquare(img.Width(), img.Height())
	if err := img.Crop(x, y, side, side); err != nil {
		return err
	}

	outputs := []struct {
		size int
		name string
	}{
		{ThumbSize * 2, Thumb2xName(src.Name)},
		{ThumbSize, ThumbName(src.Name)},
	}
	for _, out := range outputs {
		if err := img.Resize(out.size, out.size); err != nil {
			return err
		}
		path := filepath.Join(s.Dir, out.name)
		err := filesystem.WriteAtomic(path, func(w io.Writer) error {
			if err := img.EncodeJPEG(w, VariantQuality); err != nil {
				return &encodeError{err}
			}
			return nil
		})
		if err == nil {
			continue
		}
		if backend.Name() == BackendRich && !isEncodeError(err) {
			logging.Warn("Could not save thumbnail %s: %v", path, err)
			continue
		}
		return err
	}
	return nil
}

// encodeError marks failures inside the backend's encoder as opposed to
// the filesystem.
type encodeError struct{ err error }

func (e *encodeError) Error() string { return e.err.Error() }
func (e *encodeError) Unwrap() error { return e.err }

func isEncodeError(err error) bool {
	var ee *encodeError
	return errors.As(err, &ee)
}
