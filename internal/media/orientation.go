package media

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"photoshelf/internal/filesystem"
	"photoshelf/internal/logging"
	"photoshelf/internal/metadata"
	"photoshelf/internal/metrics"
)

// normalizeQuality is the JPEG quality of a rewritten original.
const normalizeQuality = 100

// Dimensions is the pixel size of an image after normalization.
type Dimensions struct {
	Width  int
	Height int
}

// Normalizer bakes EXIF orientation into the pixels of a JPEG original.
type Normalizer struct {
	Backend Backend
}

// NewNormalizer returns a Normalizer using backend.
func NewNormalizer(backend Backend) *Normalizer {
	return &Normalizer{Backend: backend}
}

// SwapsDimensions reports whether an orientation code exchanges width and
// height once applied.
func SwapsDimensions(orientation int) bool {
	return orientation >= 5 && orientation <= 8
}

// applyOrientation performs the inverse of the stored orientation so the
// pixels display upright with orientation 1.
func applyOrientation(e Editor, orientation int) error {
	switch orientation {
	case 2:
		return e.Flip(Horizontal)
	case 3:
		return e.Rotate(180)
	case 4:
		return e.Flip(Vertical)
	case 5:
		if err := e.Rotate(-90); err != nil {
			return err
		}
		return e.Flip(Horizontal)
	case 6:
		return e.Rotate(-90)
	case 7:
		if err := e.Rotate(90); err != nil {
			return err
		}
		return e.Flip(Horizontal)
	case 8:
		return e.Rotate(90)
	}
	return nil
}

// Normalize rewrites the JPEG at path upright and tags it with orientation
// 1. It returns nil dimensions when the orientation needs no change. On error
// the file at path is left untouched.
func (n *Normalizer) Normalize(path string, info *metadata.Info) (*Dimensions, error) {
	if info == nil || info.Orientation < 2 || info.Orientation > 8 {
		return nil, nil
	}
	orientation := info.Orientation
	label := strconv.Itoa(orientation)

	dims, err := n.normalize(path, orientation)
	if err != nil {
		metrics.OrientationFixesTotal.WithLabelValues(label, "error").Inc()
		return nil, err
	}
	metrics.OrientationFixesTotal.WithLabelValues(label, "success").Inc()
	logging.Debug("Normalized orientation %d of %s with %s backend (%dx%d)",
		orientation, path, n.Backend.Name(), dims.Width, dims.Height)
	return dims, nil
}

func (n *Normalizer) normalize(path string, orientation int) (*Dimensions, error) {
	img, err := n.Backend.Open(path)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	if err := applyOrientation(img, orientation); err != nil {
		return nil, fmt.Errorf("apply orientation %d: %w", orientation, err)
	}

	var buf bytes.Buffer
	if err := img.EncodeJPEG(&buf, normalizeQuality); err != nil {
		return nil, fmt.Errorf("encode normalized image: %w", err)
	}
	tagged, err := metadata.SetOrientation(buf.Bytes(), 1)
	if err != nil {
		return nil, fmt.Errorf("tag normalized image: %w", err)
	}

	err = filesystem.WriteAtomic(path, func(w io.Writer) error {
		_, err := w.Write(tagged)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Dimensions{Width: img.Width(), Height: img.Height()}, nil
}
