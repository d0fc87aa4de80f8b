package metadata

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// exifFields is the normalized subset of EXIF stored on a record.
type exifFields struct {
	Orientation int
	ISO         string
	Aperture    string
	Make        string
	Model       string
	Shutter     string
	Focal       string
	Lens        string
	Takestamp   int64
	Latitude    string
	Longitude   string
	Altitude    string

	takestampOutOfRange bool
}

var (
	shutterFraction = regexp.MustCompile(`(\d+)/(\d+) s`)
	numberToken     = regexp.MustCompile(`\d+(?:\.\d+)?(?:/\d+)?`)
)

// exifDateLayouts are tried in order. exiftool appends a zone when the file
// records one.
var exifDateLayouts = []string{
	"2006:01:02 15:04:05",
	"2006:01:02 15:04:05Z07:00",
	"2006:01:02 15:04",
	"2006-01-02 15:04:05",
}

func normalizeEXIF(raw rawEXIF, loc *time.Location) exifFields {
	var f exifFields

	if v, err := strconv.Atoi(firstValue(raw["Orientation"])); err == nil {
		f.Orientation = v
	}
	f.ISO = firstValue(raw["ISO"])
	f.Aperture = normalizeAperture(raw["FNumber"], raw["Aperture"])
	f.Make = strings.TrimSpace(raw["Make"])
	f.Model = strings.TrimSpace(raw["Model"])
	if v := strings.TrimSpace(raw["ExposureTime"]); v != "" {
		f.Shutter = normalizeShutter(v + " s")
	}
	if v := strings.TrimSpace(raw["FocalLength"]); v != "" {
		f.Focal = normalizeFocal(v)
	}
	if v := strings.TrimSpace(raw["DateTimeOriginal"]); v != "" {
		f.Takestamp, f.takestampOutOfRange = parseTakestamp(v, loc)
	}

	for _, key := range []string{"LensID", "LensSpec", "Lens", "LensInfo", "LensModel"} {
		if v := strings.TrimSpace(raw[key]); v != "" {
			f.Lens = v
			break
		}
	}

	if lat, ok := parseGPSCoordinate(raw["GPSLatitude"], raw["GPSLatitudeRef"]); ok {
		f.Latitude = formatCoordinate(lat)
	}
	if lon, ok := parseGPSCoordinate(raw["GPSLongitude"], raw["GPSLongitudeRef"]); ok {
		f.Longitude = formatCoordinate(lon)
	}
	if alt, ok := parseAltitude(raw["GPSAltitude"], raw["GPSAltitudeRef"]); ok {
		f.Altitude = trimFloat(math.Round(alt*100) / 100)
	}

	return f
}

// normalizeShutter reduces "a/b s" by the greatest common divisor. Unit
// fractions stay fractions, anything else becomes seconds.
func normalizeShutter(s string) string {
	if !strings.HasPrefix(s, "1/") {
		if m := shutterFraction.FindStringSubmatch(s); m != nil {
			a, _ := strconv.ParseInt(m[1], 10, 64)
			b, _ := strconv.ParseInt(m[2], 10, 64)
			if a > 0 && b > 0 {
				g := gcd(a, b)
				a, b = a/g, b/g
				if a == 1 {
					s = "1/" + strconv.FormatInt(b, 10) + " s"
				} else {
					s = trimFloat(float64(a)/float64(b)) + " s"
				}
			}
		}
	}
	if s == "1/1 s" {
		s = "1 s"
	}
	return s
}

// normalizeFocal renders a focal length in millimetres. Rationals are divided
// and rounded to one decimal; printed values like "50.0 mm" keep the integer
// part. A rational that does not divide yields "".
func normalizeFocal(v string) string {
	if strings.Contains(v, "/") {
		if f, ok := parseRational(v); ok {
			return trimFloat(round1(f)) + " mm"
		}
		return ""
	}
	if strings.Contains(v, "mm") {
		end := strings.IndexAny(v, ". ")
		if end < 0 {
			end = strings.Index(v, "mm")
		}
		return strings.TrimSpace(v[:end]) + " mm"
	}
	return v + " mm"
}

func normalizeAperture(fnumber, aperture string) string {
	if f, ok := parseRational(firstValue(fnumber)); ok && f > 0 {
		return "f/" + trimFloat(round1(f))
	}
	if a := strings.TrimSpace(aperture); a != "" {
		return "f/" + a
	}
	return ""
}

// parseTakestamp converts an EXIF capture time to epoch seconds. Values
// outside the signed 32-bit range are reported and replaced by 0.
func parseTakestamp(v string, loc *time.Location) (int64, bool) {
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range exifDateLayouts {
		t, err := time.ParseInLocation(layout, v, loc)
		if err != nil {
			continue
		}
		ts := t.Unix()
		if ts > math.MaxInt32 || ts < -math.MaxInt32 {
			return 0, true
		}
		return ts, false
	}
	return 0, false
}

// parseGPSCoordinate accepts degree/minute/second triples as rationals
// ("40/1, 26/1, 4600/100"), exiftool's printed form (40 deg 26' 46.00" N)
// or a plain decimal. The hemisphere comes from ref, or from a trailing
// letter in the value when ref is empty.
func parseGPSCoordinate(value, ref string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	hemisphere := strings.ToUpper(strings.TrimSpace(ref))
	if hemisphere == "" {
		last := value[len(value)-1]
		if strings.ContainsRune("NSEWnsew", rune(last)) {
			hemisphere = strings.ToUpper(string(last))
		}
	}
	if hemisphere == "" {
		return 0, false
	}

	tokens := numberToken.FindAllString(value, 3)
	if len(tokens) == 0 {
		return 0, false
	}
	var coord float64
	for i, tok := range tokens {
		part, ok := parseRational(tok)
		if !ok {
			return 0, false
		}
		coord += part / math.Pow(60, float64(i))
	}

	switch hemisphere[0] {
	case 'S', 'W':
		coord = -coord
	}
	return coord, true
}

func parseAltitude(value, ref string) (float64, bool) {
	tok := numberToken.FindString(value)
	if tok == "" {
		return 0, false
	}
	alt, ok := parseRational(tok)
	if !ok {
		return 0, false
	}
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "1" || strings.Contains(ref, "below") || strings.Contains(strings.ToLower(value), "below") {
		alt = -alt
	}
	return alt, true
}

// parseRational parses "n/d" or a decimal number.
func parseRational(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if num, den, found := strings.Cut(s, "/"); found {
		n, err1 := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, err2 := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// firstValue returns the first entry of a ", " separated list.
func firstValue(s string) string {
	if i := strings.Index(s, ","); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func formatCoordinate(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
