package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"photoshelf/internal/tools"
)

const exiftoolBinary = "exiftool"

// exiftoolTags is the tag list requested from exiftool. Orientation is asked
// for as its numeric value; everything else uses exiftool's printed form.
var exiftoolTags = []string{
	"-Orientation#",
	"-ISO",
	"-FNumber",
	"-Aperture",
	"-Make",
	"-Model",
	"-ExposureTime",
	"-FocalLength",
	"-DateTimeOriginal",
	"-LensID",
	"-LensSpec",
	"-Lens",
	"-LensInfo",
	"-LensModel",
	"-GPSLatitude",
	"-GPSLatitudeRef",
	"-GPSLongitude",
	"-GPSLongitudeRef",
	"-GPSAltitude",
	"-GPSAltitudeRef",
}

var errEmptyExiftool = errors.New("exiftool returned no records")

// readExiftool runs exiftool in JSON mode on path.
func readExiftool(ctx context.Context, timeout time.Duration, path string) (rawEXIF, error) {
	args := append([]string{"-json", "-q"}, exiftoolTags...)
	args = append(args, path)

	out, err := tools.Run(ctx, timeout, exiftoolBinary, args...)
	if err != nil {
		return nil, err
	}
	return parseExiftoolJSON(out)
}

func parseExiftoolJSON(out []byte) (rawEXIF, error) {
	var records []map[string]any
	if err := json.Unmarshal(out, &records); err != nil {
		return nil, fmt.Errorf("parse exiftool output: %w", err)
	}
	if len(records) == 0 {
		return nil, errEmptyExiftool
	}

	fields := rawEXIF{}
	for key, value := range records[0] {
		if key == "SourceFile" {
			continue
		}
		var s string
		switch v := value.(type) {
		case string:
			s = strings.TrimSpace(v)
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(v)
		case nil:
		default:
			s = fmt.Sprint(v)
		}
		if s != "" {
			fields[key] = s
		}
	}
	return fields, nil
}
