package media

import (
	"fmt"
	"image"
	"image/color"
	"io"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

// basicBackend decodes with the standard library and edits with imaging.
type basicBackend struct{}

func (basicBackend) Name() string { return BackendBasic }

func (basicBackend) Open(path string) (Image, error) {
	// Orientation is applied explicitly by the normalizer.
	img, err := imaging.Open(path, imaging.AutoOrientation(false))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return &basicImage{img: img}, nil
}

type basicImage struct {
	img image.Image
}

func (b *basicImage) Width() int  { return b.img.Bounds().Dx() }
func (b *basicImage) Height() int { return b.img.Bounds().Dy() }

func (b *basicImage) Crop(x, y, width, height int) error {
	rect := image.Rect(x, y, x+width, y+height)
	if !rect.In(image.Rect(0, 0, b.Width(), b.Height())) {
		return fmt.Errorf("crop %v outside %dx%d image", rect, b.Width(), b.Height())
	}
	b.img = imaging.Crop(b.img, rect)
	return nil
}

func (b *basicImage) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid resize target %dx%d", width, height)
	}
	b.img = imaging.Resize(b.img, width, height, imaging.Lanczos)
	return nil
}

func (b *basicImage) Rotate(degrees int) error {
	d, err := normalizeDegrees(degrees)
	if err != nil {
		return err
	}
	switch d {
	case 90:
		b.img = imaging.Rotate90(b.img)
	case 180:
		b.img = imaging.Rotate180(b.img)
	case 270:
		b.img = imaging.Rotate270(b.img)
	}
	return nil
}

func (b *basicImage) Flip(axis Axis) error {
	switch axis {
	case Horizontal:
		b.img = imaging.FlipH(b.img)
	case Vertical:
		b.img = imaging.FlipV(b.img)
	default:
		return fmt.Errorf("unknown flip axis %d", axis)
	}
	return nil
}

func (b *basicImage) EncodeJPEG(w io.Writer, quality int) error {
	// JPEG has no alpha; composite onto white like the rich backend does.
	bg := imaging.New(b.Width(), b.Height(), color.White)
	flat := imaging.Overlay(bg, b.img, image.Pt(0, 0), 1.0)
	return imaging.Encode(w, flat, imaging.JPEG, imaging.JPEGQuality(quality))
}

func (b *basicImage) Close() {}
