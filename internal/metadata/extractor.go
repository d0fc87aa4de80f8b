package metadata

import (
	"context"
	"errors"
	"os"
	"time"
	"unicode/utf8"

	"photoshelf/internal/logging"
	"photoshelf/internal/mediatypes"
	"photoshelf/internal/metrics"
	"photoshelf/internal/tools"
)

// Extractor reads metadata for one file at a time and is safe for
// concurrent use.
type Extractor struct {
	// UseExiftool prefers exiftool for JPEG EXIF when it is installed.
	UseExiftool bool
	// ToolTimeout bounds each exiftool run.
	ToolTimeout time.Duration
	// Location interprets EXIF capture times, which carry no zone.
	Location *time.Location
}

// NewExtractor returns an Extractor using the local time zone.
func NewExtractor(useExiftool bool, toolTimeout time.Duration) *Extractor {
	return &Extractor{
		UseExiftool: useExiftool,
		ToolTimeout: toolTimeout,
		Location:    time.Local,
	}
}

// Extract reads the metadata of the file at path. For images only a failed
// geometry probe is returned as an error, wrapping ErrUnreadableImage.
// Videos are not probed; their Info carries the declared type and size.
func (e *Extractor) Extract(ctx context.Context, path, mimeType string) (*Info, error) {
	log := logging.Op("metadata.Extract")

	if mediatypes.IsVideo(mimeType) {
		st, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		metrics.MetadataSourceTotal.WithLabelValues(string(SourceNone)).Inc()
		return &Info{
			Type:   mimeType,
			Bytes:  st.Size(),
			Size:   FormatSize(st.Size()),
			Source: SourceNone,
		}, nil
	}

	geom, err := Probe(path)
	if err != nil {
		return nil, err
	}

	info := &Info{
		Type:   geom.Type,
		Width:  geom.Width,
		Height: geom.Height,
		Bytes:  geom.Bytes,
		Size:   FormatSize(geom.Bytes),
		Source: SourceNone,
	}

	if geom.Format != "jpeg" {
		metrics.MetadataSourceTotal.WithLabelValues(string(SourceNone)).Inc()
		return info, nil
	}

	iptc, err := readIPTC(path)
	if err != nil {
		log.Warn("IPTC unreadable for %s: %v", path, err)
		metrics.MetadataDegradationsTotal.WithLabelValues("iptc_unreadable").Inc()
	} else {
		info.Title = iptc.Title
		info.Description = iptc.Description
		info.Tags = iptc.Tags
		info.Position = iptc.Position
	}

	raw, source := e.readEXIF(ctx, path)
	info.Source = source
	metrics.MetadataSourceTotal.WithLabelValues(string(source)).Inc()

	if raw != nil {
		f := normalizeEXIF(raw, e.Location)
		if f.takestampOutOfRange {
			log.Info("takestamp %q of %s is out of range, using 0", raw["DateTimeOriginal"], path)
			metrics.MetadataDegradationsTotal.WithLabelValues("takestamp_out_of_range").Inc()
		}
		info.Orientation = f.Orientation
		info.ISO = f.ISO
		info.Aperture = f.Aperture
		info.Make = f.Make
		info.Model = f.Model
		info.Shutter = f.Shutter
		info.Focal = f.Focal
		info.Lens = f.Lens
		info.Takestamp = f.Takestamp
		info.Latitude = f.Latitude
		info.Longitude = f.Longitude
		info.Altitude = f.Altitude
	}

	if n := clearInvalidText(info); n > 0 {
		log.Debug("cleared %d fields with invalid encoding in %s", n, path)
		metrics.MetadataDegradationsTotal.WithLabelValues("invalid_encoding").Add(float64(n))
	}

	return info, nil
}

// readEXIF picks one source for the file: exiftool when enabled and it
// succeeds, otherwise the in-process reader.
func (e *Extractor) readEXIF(ctx context.Context, path string) (rawEXIF, Source) {
	if e.UseExiftool {
		raw, err := readExiftool(ctx, e.ToolTimeout, path)
		if err == nil {
			return raw, SourceExiftool
		}
		if !errors.Is(err, tools.ErrNotInstalled) {
			logging.Warn("exiftool failed for %s, falling back: %v", path, err)
		}
		metrics.MetadataDegradationsTotal.WithLabelValues("exiftool_failed").Inc()
	}

	raw, err := readNativeEXIF(path)
	if err != nil {
		logging.Debug("no usable EXIF in %s: %v", path, err)
		metrics.MetadataDegradationsTotal.WithLabelValues("exif_unreadable").Inc()
		return nil, SourceNone
	}
	return raw, SourceNative
}

// clearInvalidText resets every text field that is not valid UTF-8.
func clearInvalidText(info *Info) int {
	cleared := 0
	for _, field := range []*string{
		&info.Title, &info.Description, &info.Tags, &info.Position,
		&info.ISO, &info.Aperture, &info.Make, &info.Model,
		&info.Shutter, &info.Focal, &info.Lens,
		&info.Latitude, &info.Longitude, &info.Altitude,
	} {
		if !utf8.ValidString(*field) {
			*field = ""
			cleared++
		}
	}
	return cleared
}
