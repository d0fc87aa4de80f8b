package metadata

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dsoprea/go-iptc"
	jis "github.com/dsoprea/go-jpeg-image-structure/v2"
)

// IPTC IIM datasets of record 2 (application record).
var (
	iptcObjectName  = iptc.StreamTagKey{RecordNumber: 2, DatasetNumber: 5}
	iptcKeywords    = iptc.StreamTagKey{RecordNumber: 2, DatasetNumber: 25}
	iptcCity        = iptc.StreamTagKey{RecordNumber: 2, DatasetNumber: 90}
	iptcSubLocation = iptc.StreamTagKey{RecordNumber: 2, DatasetNumber: 92}
	iptcProvince    = iptc.StreamTagKey{RecordNumber: 2, DatasetNumber: 95}
	iptcCountry     = iptc.StreamTagKey{RecordNumber: 2, DatasetNumber: 101}
	iptcHeadline    = iptc.StreamTagKey{RecordNumber: 2, DatasetNumber: 105}
	iptcCaption     = iptc.StreamTagKey{RecordNumber: 2, DatasetNumber: 120}
)

// IPTC holds the descriptive fields taken from an APP13 block.
type IPTC struct {
	Title       string
	Description string
	Tags        string
	Position    string
}

// readIPTC parses the IPTC block of a JPEG file. A file without APP13 yields
// an empty result and no error.
func readIPTC(path string) (IPTC, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return IPTC{}, err
	}
	return parseIPTC(data)
}

func parseIPTC(data []byte) (IPTC, error) {
	sl, err := parseJPEG(data)
	if err != nil {
		return IPTC{}, err
	}
	// FindIptc fails only when there is no APP13 block.
	if _, _, err := sl.FindIptc(); err != nil {
		return IPTC{}, nil
	}

	tags, err := sl.Iptc()
	if errors.Is(err, jis.ErrNoIptc) {
		return IPTC{}, nil
	}
	if err != nil {
		return IPTC{}, fmt.Errorf("iptc: %w", err)
	}
	return iptcFromTags(tags), nil
}

func iptcFromTags(tags map[iptc.StreamTagKey][]iptc.TagData) IPTC {
	first := func(key iptc.StreamTagKey) string {
		if v := tags[key]; len(v) > 0 {
			return strings.TrimSpace(string(v[0]))
		}
		return ""
	}

	var result IPTC

	result.Title = first(iptcHeadline)
	if result.Title == "" {
		result.Title = first(iptcObjectName)
	}
	result.Description = first(iptcCaption)

	var keywords []string
	for _, v := range tags[iptcKeywords] {
		if kw := strings.TrimSpace(string(v)); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	result.Tags = strings.Join(keywords, ",")

	var place []string
	for _, key := range []iptc.StreamTagKey{iptcCity, iptcSubLocation, iptcProvince, iptcCountry} {
		if v := first(key); v != "" {
			place = append(place, v)
		}
	}
	result.Position = strings.Join(place, ", ")

	return result
}
