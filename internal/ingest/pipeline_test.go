package ingest

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"photoshelf/internal/content"
	"photoshelf/internal/database"
	"photoshelf/internal/media"
	"photoshelf/internal/metadata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db       *database.Database
	pipeline *Pipeline
	bigDir   string
	thumbDir string
	medDir   string
	smallDir string
	srcDir   string
}

type fakeThumbnailer struct {
	thumb string
	err   error
}

func (f fakeThumbnailer) Thumbnail(context.Context, media.Source) (string, error) {
	return f.thumb, f.err
}

// countingThumbnailer records how often the wrapped thumbnailer runs.
type countingThumbnailer struct {
	media.Thumbnailer
	calls atomic.Int32
}

func (c *countingThumbnailer) Thumbnail(ctx context.Context, src media.Source) (string, error) {
	c.calls.Add(1)
	return c.Thumbnailer.Thumbnail(ctx, src)
}

func setupPipeline(t *testing.T, mutate func(*Config, *Deps)) *testEnv {
	t.Helper()

	root := t.TempDir()
	env := &testEnv{
		bigDir:   filepath.Join(root, "big"),
		thumbDir: filepath.Join(root, "thumb"),
		medDir:   filepath.Join(root, "medium"),
		smallDir: filepath.Join(root, "small"),
		srcDir:   filepath.Join(root, "incoming"),
	}
	for _, dir := range []string{env.bigDir, env.thumbDir, env.medDir, env.smallDir, env.srcDir} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}

	db, err := database.New(context.Background(), filepath.Join(root, "photoshelf.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	env.db = db

	backend := media.BasicBackend()
	still := media.NewStillThumbnailer(env.thumbDir, backend)

	cfg := Config{
		Medium: media.Variant{Kind: "medium", Dir: env.medDir, MaxWidth: 1920, MaxHeight: 1080},
		Small:  media.Variant{Kind: "small", Dir: env.smallDir, MaxWidth: 0, MaxHeight: 360},
	}
	deps := Deps{
		Store:        content.NewStore(env.bigDir, db, false),
		Repo:         db,
		Extractor:    metadata.NewExtractor(false, 5*time.Second),
		Normalizer:   media.NewNormalizer(backend),
		Thumbnailers: media.Thumbnailers{Still: still, Video: fakeThumbnailer{err: media.ErrVideoThumbUnavailable}},
		Scaler:       media.NewScaler(backend),
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}

	env.pipeline = New(cfg, deps)
	return env
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{B: uint8(x * 255 / w), G: uint8(y * 255 / h), A: 255}
			if x < w/4 && y < h/4 {
				c = color.RGBA{R: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

// withEXIF inserts an APP1 block carrying Orientation in IFD0 and
// DateTimeOriginal in the Exif sub-IFD.
func withEXIF(jpegData []byte, orientation uint16, taken string) []byte {
	le := binary.LittleEndian
	tiff := make([]byte, 56, 76)
	copy(tiff, "II")
	le.PutUint16(tiff[2:], 42)
	le.PutUint32(tiff[4:], 8)

	le.PutUint16(tiff[8:], 2)
	entry := tiff[10:]
	le.PutUint16(entry[0:], 0x0112)
	le.PutUint16(entry[2:], 3)
	le.PutUint32(entry[4:], 1)
	le.PutUint16(entry[8:], orientation)
	entry = tiff[22:]
	le.PutUint16(entry[0:], 0x8769)
	le.PutUint16(entry[2:], 4)
	le.PutUint32(entry[4:], 1)
	le.PutUint32(entry[8:], 38)
	// next IFD offset at 34 stays 0

	le.PutUint16(tiff[38:], 1)
	entry = tiff[40:]
	le.PutUint16(entry[0:], 0x9003)
	le.PutUint16(entry[2:], 2)
	le.PutUint32(entry[4:], 20)
	le.PutUint32(entry[8:], 56)
	// next IFD offset at 52 stays 0

	date := make([]byte, 20)
	copy(date, taken)
	tiff = append(tiff, date...)

	payload := append([]byte("Exif\x00\x00"), tiff...)
	seg := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(2+len(payload)))
	seg = append(seg, payload...)

	out := append([]byte{}, jpegData[:2]...)
	out = append(out, seg...)
	return append(out, jpegData[2:]...)
}

func (e *testEnv) writeSource(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(e.srcDir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestAddNewJPEG(t *testing.T) {
	env := setupPipeline(t, nil)
	ctx := context.Background()

	src := env.writeSource(t, "upload-1", encodeJPEG(t, 800, 600))

	res, err := env.pipeline.Add(ctx, Upload{
		Path:     src,
		Uploaded: true,
		MimeType: "image/jpeg",
		Filename: "holiday.JPG",
	}, Options{})
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.False(t, res.DedupHit)

	photo := res.Photo
	assert.Equal(t, content.CanonicalName(photo.ID, ".jpg"), photo.URL)
	assert.Equal(t, media.ThumbName(photo.URL), photo.ThumbURL)
	assert.Equal(t, "holiday", photo.Title)
	assert.Equal(t, "image/jpeg", photo.Type)
	assert.Equal(t, 800, photo.Width)
	assert.Equal(t, 600, photo.Height)
	assert.False(t, photo.Medium, "800x600 fits the medium box")
	assert.True(t, photo.Small, "600 exceeds the small height")
	assert.Len(t, photo.Checksum, 40)

	assert.FileExists(t, filepath.Join(env.bigDir, photo.URL))
	assert.FileExists(t, filepath.Join(env.thumbDir, media.ThumbName(photo.URL)))
	assert.FileExists(t, filepath.Join(env.thumbDir, media.Thumb2xName(photo.URL)))
	assert.NoFileExists(t, filepath.Join(env.medDir, photo.URL))
	assert.NoFileExists(t, src, "uploads are moved into the library")

	f, err := os.Open(filepath.Join(env.smallDir, photo.URL))
	require.NoError(t, err)
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 480, cfg.Width)
	assert.Equal(t, 360, cfg.Height)

	stored, err := env.db.Get(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, photo.Checksum, stored.Checksum)
	assert.Equal(t, photo.URL, stored.URL)
}

func TestAddDuplicateSharesFiles(t *testing.T) {
	var thumbs *countingThumbnailer
	env := setupPipeline(t, func(_ *Config, deps *Deps) {
		thumbs = &countingThumbnailer{Thumbnailer: deps.Thumbnailers.Still}
		deps.Thumbnailers.Still = thumbs
	})
	ctx := context.Background()

	src := env.writeSource(t, "same.jpg", encodeJPEG(t, 2400, 1600))
	up := Upload{Path: src, MimeType: "image/jpeg", Filename: "same.jpg"}

	first, err := env.pipeline.Add(ctx, up, Options{})
	require.NoError(t, err)
	require.True(t, first.Photo.Medium)
	require.True(t, first.Photo.Small)
	require.Equal(t, int32(1), thumbs.calls.Load())

	derived := snapshotDirs(t, env.thumbDir, env.medDir, env.smallDir)

	second, err := env.pipeline.Add(ctx, up, Options{})
	require.NoError(t, err)

	assert.False(t, first.DedupHit)
	assert.True(t, second.DedupHit)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Photo.Checksum, second.Photo.Checksum)
	assert.Equal(t, first.Photo.URL, second.Photo.URL)
	assert.Equal(t, first.Photo.ThumbURL, second.Photo.ThumbURL)
	assert.Equal(t, first.Photo.Medium, second.Photo.Medium)
	assert.Equal(t, first.Photo.Small, second.Photo.Small)
	assert.Equal(t, first.Photo.Width, second.Photo.Width)

	assert.Equal(t, int32(1), thumbs.calls.Load(), "no thumbnail for reused content")
	assert.Equal(t, derived, snapshotDirs(t, env.thumbDir, env.medDir, env.smallDir),
		"derived files untouched by reused content")

	assert.Equal(t, 1, countFiles(t, env.bigDir))
	assert.FileExists(t, src, "imports are copied")

	stats, err := env.db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalImages)
	assert.Equal(t, 1, stats.UniqueFiles)
}

// snapshotDirs maps every file below dirs to its modification time.
func snapshotDirs(t *testing.T, dirs ...string) map[string]time.Time {
	t.Helper()

	snap := make(map[string]time.Time)
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			info, err := e.Info()
			require.NoError(t, err)
			snap[filepath.Join(dir, e.Name())] = info.ModTime()
		}
	}
	return snap
}

func TestAddSkipDuplicates(t *testing.T) {
	env := setupPipeline(t, func(cfg *Config, _ *Deps) { cfg.SkipDuplicates = true })
	ctx := context.Background()

	src := env.writeSource(t, "same.jpg", encodeJPEG(t, 64, 64))
	up := Upload{Path: src, MimeType: "image/jpeg", Filename: "same.jpg"}

	first, err := env.pipeline.Add(ctx, up, Options{})
	require.NoError(t, err)

	_, err = env.pipeline.Add(ctx, up, Options{})
	require.Error(t, err)
	assert.Equal(t, KindDuplicateSkipped, KindOf(err))

	var ie *Error
	require.True(t, errors.As(err, &ie))
	assert.True(t, ie.Warning())
	assert.NotEmpty(t, ie.Message())

	other, err := env.db.FindByChecksum(ctx, first.Photo.Checksum, first.ID)
	require.NoError(t, err)
	assert.Nil(t, other, "no second record for skipped duplicate")
}

func TestAddConcurrentIdenticalImports(t *testing.T) {
	env := setupPipeline(t, nil)
	ctx := context.Background()

	src := env.writeSource(t, "burst.jpg", encodeJPEG(t, 320, 240))

	const n = 4
	results := make([]*Result, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.pipeline.Add(ctx, Upload{Path: src, MimeType: "image/jpeg", Filename: "burst.jpg"}, Options{})
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		if !results[i].DedupHit {
			fresh++
		}
		assert.Equal(t, results[0].Photo.URL, results[i].Photo.URL)
	}
	assert.Equal(t, 1, fresh, "exactly one upload stores the content")
	assert.Equal(t, 1, countFiles(t, env.bigDir))
}

func TestAddNormalizesOrientation(t *testing.T) {
	env := setupPipeline(t, nil)
	ctx := context.Background()

	albumID, err := env.db.CreateAlbum(ctx, "Trip")
	require.NoError(t, err)

	data := withEXIF(encodeJPEG(t, 80, 40), 6, "2020:01:02 03:04:05")
	src := env.writeSource(t, "rotated.jpg", data)

	res, err := env.pipeline.Add(ctx, Upload{Path: src, MimeType: "image/jpeg", Filename: "rotated.jpg"},
		Options{Target: Target{AlbumID: albumID}})
	require.NoError(t, err)

	assert.Equal(t, 40, res.Photo.Width)
	assert.Equal(t, 80, res.Photo.Height)

	want, err := time.ParseInLocation("2006:01:02 15:04:05", "2020:01:02 03:04:05", time.Local)
	require.NoError(t, err)
	assert.Equal(t, want.Unix(), res.Photo.Takestamp)

	stored := filepath.Join(env.bigDir, res.Photo.URL)
	geom, err := metadata.Probe(stored)
	require.NoError(t, err)
	assert.Equal(t, 40, geom.Width)
	assert.Equal(t, 80, geom.Height)

	info, err := os.Stat(stored)
	require.NoError(t, err)
	assert.Equal(t, want.Unix(), info.ModTime().Unix(), "mtime follows the capture time")

	album, err := env.db.GetAlbum(ctx, albumID)
	require.NoError(t, err)
	assert.Equal(t, want.Unix(), album.MinTakestamp)
	assert.Equal(t, want.Unix(), album.MaxTakestamp)
}

func TestAddAlbumBoundsWiden(t *testing.T) {
	env := setupPipeline(t, nil)
	ctx := context.Background()

	albumID, err := env.db.CreateAlbum(ctx, "Years")
	require.NoError(t, err)

	dates := []string{"2019:06:01 12:00:00", "2015:01:01 00:00:00", "2021:12:31 23:59:59"}
	for i, d := range dates {
		// distinct sizes keep the digests apart
		data := withEXIF(encodeJPEG(t, 40+i, 40), 1, d)
		src := env.writeSource(t, "d.jpg", data)
		_, err := env.pipeline.Add(ctx, Upload{Path: src, MimeType: "image/jpeg", Filename: "d.jpg"},
			Options{Target: Target{AlbumID: albumID}})
		require.NoError(t, err)
	}

	parse := func(s string) int64 {
		ts, err := time.ParseInLocation("2006:01:02 15:04:05", s, time.Local)
		require.NoError(t, err)
		return ts.Unix()
	}

	album, err := env.db.GetAlbum(ctx, albumID)
	require.NoError(t, err)
	assert.Equal(t, parse(dates[1]), album.MinTakestamp)
	assert.Equal(t, parse(dates[2]), album.MaxTakestamp)
}

func TestAddTargetShortcuts(t *testing.T) {
	env := setupPipeline(t, nil)
	ctx := context.Background()

	for i, shortcut := range []string{"s", "f", "r"} {
		target, err := ParseTarget(shortcut)
		require.NoError(t, err)

		src := env.writeSource(t, "t.jpg", encodeJPEG(t, 16+i, 16))
		res, err := env.pipeline.Add(ctx, Upload{Path: src, MimeType: "image/jpeg", Filename: "t.jpg"}, Options{Target: target})
		require.NoError(t, err)

		assert.Equal(t, shortcut == "s", res.Photo.Public, shortcut)
		assert.Equal(t, shortcut == "f", res.Photo.Star, shortcut)
		assert.Zero(t, res.Photo.AlbumID, shortcut)
	}
}

func TestAddRejected(t *testing.T) {
	jpegData := func(t *testing.T) []byte { return encodeJPEG(t, 8, 8) }

	tests := []struct {
		name     string
		filename string
		mime     string
		data     func(t *testing.T) []byte
		tErr     TransportError
		kind     Kind
	}{
		{"partial upload", "a.jpg", "image/jpeg", jpegData, TransportPartial, KindTransport},
		{"too large", "a.jpg", "image/jpeg", jpegData, TransportTooLarge, KindTransport},
		{"bad extension", "a.tiff", "image/tiff", jpegData, TransportOK, KindValidation},
		{"text posing as jpeg", "a.jpg", "image/jpeg", func(*testing.T) []byte { return []byte("just some text") }, TransportOK, KindValidation},
		{"truncated jpeg", "a.jpg", "image/jpeg", func(*testing.T) []byte { return []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F', 0} }, TransportOK, KindUnreadableImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupPipeline(t, nil)
			ctx := context.Background()

			src := env.writeSource(t, "upload", tt.data(t))
			_, err := env.pipeline.Add(ctx, Upload{
				Path:           src,
				Uploaded:       true,
				MimeType:       tt.mime,
				Filename:       tt.filename,
				TransportError: tt.tErr,
			}, Options{})
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))

			stats, err := env.db.GetStats(ctx)
			require.NoError(t, err)
			assert.Zero(t, stats.TotalImages, "no record after abort")
		})
	}
}

func TestAddSoftMode(t *testing.T) {
	env := setupPipeline(t, nil)

	src := env.writeSource(t, "notes", []byte("hello"))
	res, err := env.pipeline.Add(context.Background(), Upload{Path: src, MimeType: "image/png", Filename: "notes.png"}, Options{Soft: true})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.OK)
	require.NotNil(t, res.Err)
	assert.Equal(t, KindValidation, res.Err.Kind)
	assert.Equal(t, "ingest.Validate", res.Err.Op)
	assert.NotEmpty(t, res.Err.Site)
}

func TestAddThumbnailFailureAborts(t *testing.T) {
	env := setupPipeline(t, func(_ *Config, deps *Deps) {
		deps.Thumbnailers.Still = fakeThumbnailer{err: errors.New("encoder exploded")}
	})
	ctx := context.Background()

	src := env.writeSource(t, "x.jpg", encodeJPEG(t, 32, 32))
	_, err := env.pipeline.Add(ctx, Upload{Path: src, MimeType: "image/jpeg", Filename: "x.jpg"}, Options{})
	require.Error(t, err)
	assert.Equal(t, KindDerivation, KindOf(err))

	stats, err := env.db.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalImages)
}

func TestAddVideo(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	tests := []struct {
		name      string
		thumb     fakeThumbnailer
		wantThumb string
		wantKind  Kind
	}{
		{"ffmpeg missing", fakeThumbnailer{err: media.ErrVideoThumbUnavailable}, "", ""},
		{"frame extracted", fakeThumbnailer{thumb: "frame.jpeg"}, "frame.jpeg", ""},
		{"probe failed", fakeThumbnailer{err: errors.New("ffprobe: invalid data")}, "", KindDerivation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupPipeline(t, func(_ *Config, deps *Deps) { deps.Thumbnailers.Video = tt.thumb })
			env.pipeline.now = func() time.Time { return now }

			src := env.writeSource(t, "clip", []byte("not really a movie"))
			res, err := env.pipeline.Add(context.Background(), Upload{Path: src, MimeType: "video/mp4", Filename: "clip.mp4"}, Options{})
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "video/mp4", res.Photo.Type)
			assert.Equal(t, tt.wantThumb, res.Photo.ThumbURL)
			assert.Equal(t, now.Unix(), res.Photo.Takestamp)
			assert.Zero(t, res.Photo.Width)
			assert.False(t, res.Photo.Medium)
			assert.False(t, res.Photo.Small)
			assert.Equal(t, "clip", res.Photo.Title)
		})
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{"", Target{}, false},
		{"0", Target{}, false},
		{"r", Target{}, false},
		{"s", Target{Public: true}, false},
		{"f", Target{Star: true}, false},
		{"42", Target{AlbumID: 42}, false},
		{"-1", Target{}, true},
		{"x", Target{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			if tt.wantErr {
				assert.Equal(t, KindValidation, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		filename, ext, want string
	}{
		{"holiday.jpg", ".jpg", "holiday"},
		{"HOLIDAY.JPG", ".jpg", "HOLIDAY"},
		{"/tmp/dir/beach.png", ".png", "beach"},
		{"an-extremely-long-file-name-from-a-camera.jpg", ".jpg", "an-extremely-long-file-name-fr"},
		{"ééééééééééééééééé.jpg", ".jpg", "ééééééééééééééé"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, titleFromFilename(tt.filename, tt.ext))
		})
	}
}

func TestFailLogsStageCallSite(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	e := fail("ingest.Dedup", KindChecksum, "Could not calculate checksum for photo", errors.New("read failed"))
	_, file, line, _ := runtime.Caller(0)
	site := fmt.Sprintf("%s:%d", filepath.Base(file), line-1)

	assert.Equal(t, site, e.Site)
	assert.Contains(t, buf.String(), "ingest.Dedup ("+site+"): Could not calculate checksum for photo: read failed")
	assert.NotContains(t, buf.String(), "errors.go")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindStorage, KindOf(&Error{Kind: KindStorage}))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestTransportMessages(t *testing.T) {
	assert.Contains(t, TransportPartial.message(), "partially")
	assert.Contains(t, TransportError(99).message(), "99")
}
