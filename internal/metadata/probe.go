package metadata

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	_ "image/gif"  // gif header support
	_ "image/jpeg" // jpeg header support
	_ "image/png"  // png header support

	_ "golang.org/x/image/webp" // recognized so it can be rejected by name

	"photoshelf/internal/logging"
)

// ErrUnreadableImage is returned when the image header cannot be parsed.
var ErrUnreadableImage = errors.New("unreadable image")

// Geometry is the result of the header probe.
type Geometry struct {
	Width  int
	Height int
	// Format is the decoder name, e.g. "jpeg", "png", "gif", "webp".
	Format string
	Type   string
	Bytes  int64
}

// Probe reads the image header without decoding pixels.
func Probe(path string) (*Geometry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	return ProbeReader(file)
}

// ProbeReader is Probe over an already opened stream. The byte size is only
// filled in when r is an *os.File.
func ProbeReader(r io.Reader) (*Geometry, error) {
	config, format, err := image.DecodeConfig(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("%w: empty geometry %dx%d", ErrUnreadableImage, config.Width, config.Height)
	}

	g := &Geometry{
		Width:  config.Width,
		Height: config.Height,
		Format: format,
		Type:   "image/" + format,
	}
	if f, ok := r.(*os.File); ok {
		if info, err := f.Stat(); err == nil {
			g.Bytes = info.Size()
		}
	}
	return g, nil
}
