package metadata

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// encodeTestJPEG returns a w x h JPEG with a gradient fill.
func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

const (
	iimTagMarker      = 0x1C
	resourceSignature = "8BIM"
	resourceIPTCNAA   = 0x0404
	photoshopHeader   = "Photoshop 3.0\x00"
)

type iimDataset struct {
	record, dataset byte
	value           string
}

// withIPTC inserts an APP13 Photoshop block holding the given datasets.
func withIPTC(t *testing.T, jpegData []byte, datasets []iimDataset) []byte {
	t.Helper()

	var iim bytes.Buffer
	for _, ds := range datasets {
		iim.Write([]byte{iimTagMarker, ds.record, ds.dataset})
		_ = binary.Write(&iim, binary.BigEndian, uint16(len(ds.value)))
		iim.WriteString(ds.value)
	}

	var res bytes.Buffer
	res.WriteString(photoshopHeader)
	res.WriteString(resourceSignature)
	_ = binary.Write(&res, binary.BigEndian, uint16(resourceIPTCNAA))
	res.Write([]byte{0, 0}) // empty name, padded
	_ = binary.Write(&res, binary.BigEndian, uint32(iim.Len()))
	res.Write(iim.Bytes())
	if iim.Len()%2 != 0 {
		res.WriteByte(0)
	}

	seg := []byte{0xFF, 0xED, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(2+res.Len()))
	seg = append(seg, res.Bytes()...)

	out := append([]byte{}, jpegData[:2]...)
	out = append(out, seg...)
	return append(out, jpegData[2:]...)
}

func TestParseIPTC(t *testing.T) {
	data := withIPTC(t, encodeTestJPEG(t, 8, 8), []iimDataset{
		{2, 5, "Object name"},
		{2, 105, "Headline"},
		{2, 120, "A caption"},
		{2, 25, "beach"},
		{2, 25, "sunset"},
		{2, 90, "Lisbon"},
		{2, 92, " Belem "},
		{2, 101, "Portugal"},
	})

	got, err := parseIPTC(data)
	if err != nil {
		t.Fatalf("parseIPTC() error = %v", err)
	}
	want := IPTC{
		Title:       "Headline",
		Description: "A caption",
		Tags:        "beach,sunset",
		Position:    "Lisbon, Belem, Portugal",
	}
	if got != want {
		t.Errorf("parseIPTC() = %+v, want %+v", got, want)
	}
}

func TestParseIPTCTitleFallsBackToObjectName(t *testing.T) {
	data := withIPTC(t, encodeTestJPEG(t, 8, 8), []iimDataset{{2, 5, "Object name"}})
	got, err := parseIPTC(data)
	if err != nil {
		t.Fatalf("parseIPTC() error = %v", err)
	}
	if got.Title != "Object name" {
		t.Errorf("Title = %q, want %q", got.Title, "Object name")
	}
}

func TestParseIPTCWithoutBlock(t *testing.T) {
	got, err := parseIPTC(encodeTestJPEG(t, 8, 8))
	if err != nil {
		t.Fatalf("parseIPTC() error = %v", err)
	}
	if got != (IPTC{}) {
		t.Errorf("parseIPTC() = %+v, want empty", got)
	}
}

func TestParseIPTCRejectsNonJPEG(t *testing.T) {
	if _, err := parseIPTC([]byte("not a jpeg")); err == nil {
		t.Error("parseIPTC() error = nil, want error for non-jpeg input")
	}
}

func TestSetOrientationRoundTrip(t *testing.T) {
	for _, orientation := range []int{1, 3, 6, 8} {
		data, err := SetOrientation(encodeTestJPEG(t, 16, 8), orientation)
		if err != nil {
			t.Fatalf("SetOrientation(%d) error = %v", orientation, err)
		}
		path := writeFile(t, "oriented.jpg", data)

		raw, err := readNativeEXIF(path)
		if err != nil {
			t.Fatalf("readNativeEXIF() error = %v", err)
		}
		if got := normalizeEXIF(raw, time.UTC).Orientation; got != orientation {
			t.Errorf("orientation = %d, want %d", got, orientation)
		}

		if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
			t.Errorf("tagged jpeg no longer decodes: %v", err)
		}
	}
}

func TestSetOrientationReplacesExistingBlock(t *testing.T) {
	first, err := SetOrientation(encodeTestJPEG(t, 8, 8), 6)
	if err != nil {
		t.Fatal(err)
	}
	second, err := SetOrientation(first, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != len(first) {
		t.Errorf("len = %d, want %d (old block should be replaced)", len(second), len(first))
	}

	sl, err := parseJPEG(second)
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for _, s := range sl.Segments() {
		if s.IsExif() {
			count++
		}
	}
	if count != 1 {
		t.Errorf("exif segments = %d, want 1", count)
	}
}

func TestSetOrientationRejectsInvalid(t *testing.T) {
	if _, err := SetOrientation(encodeTestJPEG(t, 8, 8), 9); err == nil {
		t.Error("expected error for orientation 9")
	}
	if _, err := SetOrientation([]byte("not a jpeg"), 1); err == nil {
		t.Error("expected error for non-jpeg input")
	}
}

func TestExtractJPEG(t *testing.T) {
	data, err := SetOrientation(withIPTC(t, encodeTestJPEG(t, 40, 30), []iimDataset{
		{2, 105, "Harbour"},
		{2, 25, "boats"},
	}), 6)
	if err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, "harbour.jpg", data)

	e := NewExtractor(false, time.Second)
	info, err := e.Extract(context.Background(), path, "image/jpeg")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if info.Width != 40 || info.Height != 30 {
		t.Errorf("dimensions = %dx%d, want 40x30", info.Width, info.Height)
	}
	if info.Type != "image/jpeg" {
		t.Errorf("Type = %q, want image/jpeg", info.Type)
	}
	if info.Title != "Harbour" || info.Tags != "boats" {
		t.Errorf("IPTC fields = %q %q", info.Title, info.Tags)
	}
	if info.Orientation != 6 {
		t.Errorf("Orientation = %d, want 6", info.Orientation)
	}
	if info.Source != SourceNative {
		t.Errorf("Source = %q, want native", info.Source)
	}
	if info.Bytes != int64(len(data)) {
		t.Errorf("Bytes = %d, want %d", info.Bytes, len(data))
	}
}

func TestExtractDegradesWithoutEXIF(t *testing.T) {
	path := writeFile(t, "plain.jpg", encodeTestJPEG(t, 20, 10))

	info, err := NewExtractor(false, time.Second).Extract(context.Background(), path, "image/jpeg")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if info.Source != SourceNone {
		t.Errorf("Source = %q, want none", info.Source)
	}
	if info.Orientation != 0 || info.Takestamp != 0 || info.Make != "" {
		t.Errorf("EXIF fields should be empty: %+v", info)
	}
	if info.Width != 20 || info.Height != 10 {
		t.Errorf("dimensions = %dx%d, want 20x10", info.Width, info.Height)
	}
}

func TestExtractPNGSkipsEXIF(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 12, 34))); err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, "img.png", buf.Bytes())

	info, err := NewExtractor(true, time.Second).Extract(context.Background(), path, "image/png")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if info.Type != "image/png" || info.Width != 12 || info.Height != 34 {
		t.Errorf("info = %+v", info)
	}
	if info.Source != SourceNone {
		t.Errorf("Source = %q, want none", info.Source)
	}
}

func TestExtractUnreadableImage(t *testing.T) {
	path := writeFile(t, "broken.jpg", []byte("definitely not an image"))

	_, err := NewExtractor(false, time.Second).Extract(context.Background(), path, "image/jpeg")
	if !errors.Is(err, ErrUnreadableImage) {
		t.Fatalf("Extract() error = %v, want ErrUnreadableImage", err)
	}
}

func TestExtractVideoSkipsProbe(t *testing.T) {
	path := writeFile(t, "clip.mp4", make([]byte, 2048))

	info, err := NewExtractor(false, time.Second).Extract(context.Background(), path, "video/mp4")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if info.Type != "video/mp4" || info.Size != "2 KB" {
		t.Errorf("info = %+v", info)
	}
}

func TestClearInvalidText(t *testing.T) {
	info := &Info{Title: "ok", Make: "bad\xff", Lens: "\xc3\x28"}
	if n := clearInvalidText(info); n != 2 {
		t.Errorf("clearInvalidText() = %d, want 2", n)
	}
	if info.Title != "ok" || info.Make != "" || info.Lens != "" {
		t.Errorf("fields after clear = %+v", info)
	}
}

func TestParseExiftoolJSON(t *testing.T) {
	out := []byte(`[{
		"SourceFile": "/tmp/a.jpg",
		"Orientation": 6,
		"ISO": 400,
		"ExposureTime": "1/60",
		"FocalLength": "24.0 mm",
		"GPSLatitude": "48 deg 51' 29.00\" N",
		"GPSLatitudeRef": "North",
		"Make": "  FUJIFILM "
	}]`)

	raw, err := parseExiftoolJSON(out)
	if err != nil {
		t.Fatalf("parseExiftoolJSON() error = %v", err)
	}
	if _, ok := raw["SourceFile"]; ok {
		t.Error("SourceFile should be dropped")
	}

	f := normalizeEXIF(raw, time.UTC)
	if f.Orientation != 6 || f.ISO != "400" || f.Shutter != "1/60 s" || f.Focal != "24 mm" || f.Make != "FUJIFILM" {
		t.Errorf("normalized = %+v", f)
	}
	if f.Latitude != "48.858056" {
		t.Errorf("Latitude = %q, want 48.858056", f.Latitude)
	}

	if _, err := parseExiftoolJSON([]byte(`[]`)); err == nil {
		t.Error("expected error for empty output")
	}
}
