package media

import (
	"context"
	"errors"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"photoshelf/internal/mediatypes"
)

func TestCropSquare(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		wantX, wantY  int
		wantSide      int
	}{
		{"landscape", 4000, 2000, 1000, 0, 2000},
		{"portrait", 2000, 4000, 0, 1000, 2000},
		{"square", 500, 500, 0, 0, 500},
		{"odd difference", 301, 200, 50, 0, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, side := CropSquare(tt.width, tt.height)
			if x != tt.wantX || y != tt.wantY || side != tt.wantSide {
				t.Errorf("CropSquare(%d, %d) = (%d, %d, %d), want (%d, %d, %d)",
					tt.width, tt.height, x, y, side, tt.wantX, tt.wantY, tt.wantSide)
			}
		})
	}
}

func TestThumbNames(t *testing.T) {
	if got := ThumbName("abc.jpg"); got != "abc.jpeg" {
		t.Errorf("ThumbName() = %q", got)
	}
	if got := Thumb2xName("abc.png"); got != "abc@2x.jpeg" {
		t.Errorf("Thumb2xName() = %q", got)
	}
}

func jpegSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return cfg.Width, cfg.Height
}

func TestStillThumbnailerWritesPair(t *testing.T) {
	for _, format := range []string{"jpeg", "png", "gif"} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			thumbDir := filepath.Join(dir, "thumb")
			if err := os.Mkdir(thumbDir, 0o755); err != nil {
				t.Fatal(err)
			}
			src := filepath.Join(dir, "src."+format)
			createTestImage(t, src, 300, 150, format)

			ref, err := NewStillThumbnailer(thumbDir, BasicBackend()).Thumbnail(context.Background(), Source{
				Path:   src,
				Name:   "0123abcd.jpg",
				Type:   "image/" + format,
				Width:  300,
				Height: 150,
			})
			if err != nil {
				t.Fatalf("Thumbnail() error = %v", err)
			}
			if ref != "0123abcd.jpeg" {
				t.Errorf("Thumbnail() = %q, want 0123abcd.jpeg", ref)
			}

			if w, h := jpegSize(t, filepath.Join(thumbDir, "0123abcd.jpeg")); w != 200 || h != 200 {
				t.Errorf("thumb = %dx%d, want 200x200", w, h)
			}
			if w, h := jpegSize(t, filepath.Join(thumbDir, "0123abcd@2x.jpeg")); w != 400 || h != 400 {
				t.Errorf("thumb@2x = %dx%d, want 400x400", w, h)
			}
		})
	}
}

func TestStillThumbnailerUnsupportedFormat(t *testing.T) {
	_, err := NewStillThumbnailer(t.TempDir(), BasicBackend()).Thumbnail(context.Background(), Source{
		Path: "/nonexistent.webp",
		Name: "x.webp",
		Type: "image/webp",
	})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Thumbnail() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestStillThumbnailerFallsBackToBasic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	createTestImage(t, src, 120, 240, "jpeg")

	th := &StillThumbnailer{
		Dir:      dir,
		Backend:  failingBackend{name: BackendRich},
		Fallback: BasicBackend(),
	}
	ref, err := th.Thumbnail(context.Background(), Source{Path: src, Name: "p.jpg", Type: mediatypes.MimeJPEG, Width: 120, Height: 240})
	if err != nil {
		t.Fatalf("Thumbnail() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ref)); err != nil {
		t.Errorf("fallback thumbnail missing: %v", err)
	}
}

func TestStillThumbnailerFailsWithoutFallback(t *testing.T) {
	dir := t.TempDir()
	th := &StillThumbnailer{Dir: dir, Backend: failingBackend{name: BackendBasic}}
	if _, err := th.Thumbnail(context.Background(), Source{Path: "x", Name: "p.jpg", Type: mediatypes.MimeJPEG}); err == nil {
		t.Error("Thumbnail() error = nil, want failure")
	}
}

func TestThumbnailersFor(t *testing.T) {
	still := &StillThumbnailer{}
	video := &VideoThumbnailer{Still: still}
	th := Thumbnailers{Still: still, Video: video}

	if th.For(mediatypes.KindImage) != Thumbnailer(still) {
		t.Error("image kind should use the still thumbnailer")
	}
	if th.For(mediatypes.KindVideo) != Thumbnailer(video) {
		t.Error("video kind should use the video thumbnailer")
	}
}
