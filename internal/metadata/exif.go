package metadata

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"photoshelf/internal/logging"
)

// rawEXIF maps tag names to their textual values. Both EXIF sources fill it
// with the same key set so normalization does not depend on the source.
type rawEXIF map[string]string

// nativeFieldNames renames reader fields to the shared key set.
var nativeFieldNames = map[string]string{
	"ISOSpeedRatings":   "ISO",
	"LensSpecification": "LensInfo",
}

type exifWalker struct {
	fields rawEXIF
}

func (w *exifWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	key := string(name)
	if renamed, ok := nativeFieldNames[key]; ok {
		key = renamed
	}
	if value := tagString(tag); value != "" {
		w.fields[key] = value
	}
	return nil
}

// readNativeEXIF decodes EXIF with the in-process reader.
func readNativeEXIF(path string) (rawEXIF, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close %s: %v", path, err)
		}
	}()

	x, err := exif.Decode(file)
	if err != nil {
		// Partial results come back alongside sub-IFD errors; keep them.
		if x == nil || exif.IsCriticalError(err) {
			return nil, fmt.Errorf("decode exif: %w", err)
		}
		logging.Debug("partial exif in %s: %v", path, err)
	}

	walker := &exifWalker{fields: rawEXIF{}}
	if err := x.Walk(walker); err != nil {
		return nil, fmt.Errorf("walk exif: %w", err)
	}
	return walker.fields, nil
}

// tagString renders a tag in the textual form exiftool would print for
// unconverted values: rationals as "n/d", lists joined by ", ".
func tagString(tag *tiff.Tag) string {
	count := int(tag.Count)
	parts := make([]string, 0, count)

	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(s, "\x00"))
	case tiff.UndefVal:
		return strings.TrimSpace(strings.TrimRight(string(tag.Val), "\x00"))
	case tiff.IntVal:
		for i := 0; i < count; i++ {
			v, err := tag.Int(i)
			if err != nil {
				return ""
			}
			parts = append(parts, strconv.Itoa(v))
		}
	case tiff.RatVal:
		for i := 0; i < count; i++ {
			num, den, err := tag.Rat2(i)
			if err != nil {
				return ""
			}
			parts = append(parts, fmt.Sprintf("%d/%d", num, den))
		}
	case tiff.FloatVal:
		for i := 0; i < count; i++ {
			v, err := tag.Float(i)
			if err != nil {
				return ""
			}
			parts = append(parts, strconv.FormatFloat(v, 'f', -1, 64))
		}
	default:
		return ""
	}
	return strings.Join(parts, ", ")
}
