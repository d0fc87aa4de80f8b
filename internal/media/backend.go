package media

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"photoshelf/internal/logging"
)

// Backend names, also used as metric labels.
const (
	BackendRich  = "rich"
	BackendBasic = "basic"
	BackendAuto  = "auto"
)

// Axis selects the mirror direction for Flip.
type Axis int

const (
	Horizontal Axis = iota
	Vertical
)

// ErrUnsupportedFormat is returned for inputs outside jpeg, png and gif.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Editor is the geometric surface used by orientation normalization.
type Editor interface {
	// Rotate turns the image counter-clockwise by a multiple of 90 degrees.
	// Negative values rotate clockwise.
	Rotate(degrees int) error
	Flip(axis Axis) error
}

// Image is a decoded image held by a backend. Operations mutate it in place.
type Image interface {
	Editor
	Width() int
	Height() int
	Crop(x, y, width, height int) error
	Resize(width, height int) error
	// EncodeJPEG writes the image as a JPEG without source metadata.
	EncodeJPEG(w io.Writer, quality int) error
	Close()
}

// Backend decodes images for one of the processing libraries.
type Backend interface {
	Name() string
	Open(path string) (Image, error)
}

// SelectBackend picks the image backend for a preference of auto, rich or
// basic. Rich needs libvips; when it is unavailable the basic backend is
// used instead.
func SelectBackend(preference string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(preference)) {
	case "", BackendAuto:
		if IsVipsAvailable() {
			return richBackend{}, nil
		}
		return basicBackend{}, nil
	case BackendRich:
		if IsVipsAvailable() {
			return richBackend{}, nil
		}
		logging.Warn("Image backend %q requested but libvips is not available, using basic", BackendRich)
		return basicBackend{}, nil
	case BackendBasic:
		return basicBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown image backend %q (want auto, rich or basic)", preference)
	}
}

// BasicBackend returns the pure Go backend. It is always available and
// serves as the fallback for the rich backend.
func BasicBackend() Backend {
	return basicBackend{}
}

// normalizeDegrees maps degrees to 0, 90, 180 or 270.
func normalizeDegrees(degrees int) (int, error) {
	if degrees%90 != 0 {
		return 0, fmt.Errorf("rotation must be a multiple of 90, got %d", degrees)
	}
	d := degrees % 360
	if d < 0 {
		d += 360
	}
	return d, nil
}
