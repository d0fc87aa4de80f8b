package metadata

import (
	"fmt"
	"math"
)

// Source identifies where EXIF fields came from.
type Source string

const (
	SourceNone     Source = "none"
	SourceExiftool Source = "exiftool"
	SourceNative   Source = "native"
)

// Info is the metadata bag consumed once to build a photo record.
type Info struct {
	Type   string
	Width  int
	Height int
	Bytes  int64
	Size   string

	Title       string
	Description string
	Tags        string
	Position    string

	// Orientation is the raw EXIF orientation code, 0 when absent.
	Orientation int
	ISO         string
	Aperture    string
	Make        string
	Model       string
	Shutter     string
	Focal       string
	Lens        string
	Takestamp   int64

	Latitude  string
	Longitude string
	Altitude  string

	Source Source
}

// FormatSize renders a byte count the way the library displays it:
// kilobytes with one decimal below 1 MB, megabytes above.
func FormatSize(bytes int64) string {
	kb := float64(bytes) / 1024
	if kb >= 1024 {
		return fmt.Sprintf("%s MB", trimFloat(round1(kb/1024)))
	}
	return fmt.Sprintf("%s KB", trimFloat(round1(kb)))
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
