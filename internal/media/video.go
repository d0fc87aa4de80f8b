package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"photoshelf/internal/logging"
	"photoshelf/internal/mediatypes"
	"photoshelf/internal/metrics"
	"photoshelf/internal/tools"
)

// ErrVideoThumbUnavailable is returned when ffmpeg or ffprobe is missing.
// Ingestion treats it as "no thumbnail" rather than a failure.
var ErrVideoThumbUnavailable = errors.New("video thumbnails unavailable: ffmpeg/ffprobe not installed")

// VideoThumbnailer grabs the middle frame of a video and hands it to the
// still thumbnailer.
type VideoThumbnailer struct {
	Still *StillThumbnailer
	// Timeout bounds each ffprobe and ffmpeg run.
	Timeout time.Duration
	// TempDir receives the extracted frame; empty means os.TempDir().
	TempDir string
}

// NewVideoThumbnailer returns a VideoThumbnailer delegating to still.
func NewVideoThumbnailer(still *StillThumbnailer, timeout time.Duration) *VideoThumbnailer {
	return &VideoThumbnailer{Still: still, Timeout: timeout}
}

// Available reports whether both ffprobe and ffmpeg are installed.
func (v *VideoThumbnailer) Available() bool {
	return tools.Available("ffprobe") && tools.Available("ffmpeg")
}

// Thumbnail probes the duration, extracts the frame at half of it scaled to
// the thumbnail size and runs the still routine on that frame.
func (v *VideoThumbnailer) Thumbnail(ctx context.Context, src Source) (string, error) {
	if !v.Available() {
		metrics.DerivationsTotal.WithLabelValues("video_thumb", "ffmpeg", "skipped").Inc()
		return "", ErrVideoThumbUnavailable
	}

	start := time.Now()
	defer func() {
		metrics.DerivationDuration.WithLabelValues("video_thumb").Observe(time.Since(start).Seconds())
	}()

	duration, err := v.probeDuration(ctx, src.Path)
	if err != nil {
		metrics.DerivationsTotal.WithLabelValues("video_thumb", "ffmpeg", "error").Inc()
		return "", err
	}

	frame, err := v.extractFrame(ctx, src.Path, duration/2)
	if err != nil {
		metrics.DerivationsTotal.WithLabelValues("video_thumb", "ffmpeg", "error").Inc()
		return "", err
	}
	defer func() {
		if err := os.Remove(frame); err != nil && !os.IsNotExist(err) {
			logging.Warn("failed to remove frame %s: %v", frame, err)
		}
	}()
	metrics.DerivationsTotal.WithLabelValues("video_thumb", "ffmpeg", "success").Inc()

	return v.Still.Thumbnail(ctx, Source{
		Path:   frame,
		Name:   src.Name,
		Type:   mediatypes.MimeJPEG,
		Width:  ThumbSize,
		Height: ThumbSize,
	})
}

type ffprobeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// probeDuration returns the container duration in seconds.
func (v *VideoThumbnailer) probeDuration(ctx context.Context, path string) (float64, error) {
	out, err := tools.Run(ctx, v.Timeout, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probe video duration: %w", err)
	}
	return parseProbeDuration(out)
}

func parseProbeDuration(out []byte) (float64, error) {
	var probe ffprobeFormat
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil || duration < 0 {
		return 0, fmt.Errorf("ffprobe reported no usable duration %q", probe.Format.Duration)
	}
	return duration, nil
}

// extractFrame writes one JPEG frame at position seconds into a temp file.
func (v *VideoThumbnailer) extractFrame(ctx context.Context, path string, position float64) (string, error) {
	tmp, err := os.CreateTemp(v.TempDir, "frame-*.jpeg")
	if err != nil {
		return "", fmt.Errorf("create frame file: %w", err)
	}
	frame := tmp.Name()
	_ = tmp.Close()

	size := strconv.Itoa(ThumbSize)
	_, err = tools.Run(ctx, v.Timeout, "ffmpeg",
		"-y",
		"-ss", strconv.FormatFloat(position, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-an",
		"-vf", "scale="+size+":"+size,
		"-q:v", "2",
		frame,
	)
	if err == nil {
		if st, statErr := os.Stat(frame); statErr != nil || st.Size() == 0 {
			err = fmt.Errorf("ffmpeg produced no frame for %s", filepath.Base(path))
		}
	}
	if err != nil {
		_ = os.Remove(frame)
		return "", fmt.Errorf("extract video frame: %w", err)
	}
	return frame, nil
}
