package media

import (
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// createTestImage writes a width x height gradient image. A solid red block
// marks the top-left corner so rotations can be verified.
func createTestImage(t *testing.T, path string, width, height int, format string) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{
				R: 0,
				G: uint8((y * 255) / height),
				B: uint8((x * 255) / width),
				A: 255,
			}
			if x < width/4 && y < height/4 {
				c = color.RGBA{R: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create test image file: %v", err)
	}
	defer f.Close()

	switch format {
	case "jpeg", "jpg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 95})
	case "png":
		err = png.Encode(f, img)
	case "gif":
		err = gif.Encode(f, img, nil)
	default:
		t.Fatalf("Unsupported format: %s", format)
	}
	if err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
}

func decodeJPEGFile(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return img
}

func isRed(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 > 200 && g>>8 < 60 && b>>8 < 60
}

func TestNormalizeDegrees(t *testing.T) {
	tests := []struct {
		in      int
		want    int
		wantErr bool
	}{
		{0, 0, false},
		{90, 90, false},
		{-90, 270, false},
		{180, 180, false},
		{450, 90, false},
		{45, 0, true},
	}
	for _, tt := range tests {
		got, err := normalizeDegrees(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("normalizeDegrees(%d) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("normalizeDegrees(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBasicImageEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edit.png")
	createTestImage(t, path, 40, 20, "png")

	img, err := BasicBackend().Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer img.Close()

	if err := img.Rotate(90); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	if img.Width() != 20 || img.Height() != 40 {
		t.Errorf("after rotate = %dx%d, want 20x40", img.Width(), img.Height())
	}

	if err := img.Flip(Vertical); err != nil {
		t.Fatalf("Flip() error = %v", err)
	}
	if err := img.Crop(0, 10, 20, 20); err != nil {
		t.Fatalf("Crop() error = %v", err)
	}
	if img.Width() != 20 || img.Height() != 20 {
		t.Errorf("after crop = %dx%d, want 20x20", img.Width(), img.Height())
	}
	if err := img.Crop(10, 10, 20, 20); err == nil {
		t.Error("Crop() outside bounds should fail")
	}
	if err := img.Resize(0, 5); err == nil {
		t.Error("Resize() to zero width should fail")
	}
}

func TestBasicBackendOpenFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jpg")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := BasicBackend().Open(path); err == nil {
		t.Error("Open() on garbage should fail")
	}
}

func TestSelectBackend(t *testing.T) {
	tests := []struct {
		pref    string
		wantErr bool
	}{
		{"", false},
		{"auto", false},
		{"basic", false},
		{"rich", false},
		{"imagick", true},
	}
	for _, tt := range tests {
		t.Run(tt.pref, func(t *testing.T) {
			b, err := SelectBackend(tt.pref)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SelectBackend(%q) error = %v, wantErr %v", tt.pref, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.pref == "basic" && b.Name() != BackendBasic {
				t.Errorf("SelectBackend(basic) = %s", b.Name())
			}
			if !IsVipsAvailable() && b.Name() != BackendBasic {
				t.Errorf("without libvips SelectBackend(%q) = %s, want basic", tt.pref, b.Name())
			}
		})
	}
}
