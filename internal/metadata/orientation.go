package metadata

import (
	"bytes"
	"fmt"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

// SetOrientation returns a copy of a JPEG stream whose EXIF block consists
// of a single Orientation entry with the given value. An existing EXIF
// block is replaced; otherwise the new one is placed right after SOI.
func SetOrientation(jpegData []byte, orientation int) ([]byte, error) {
	if orientation < 1 || orientation > 8 {
		return nil, fmt.Errorf("invalid orientation %d", orientation)
	}
	sl, err := parseJPEG(jpegData)
	if err != nil {
		return nil, err
	}

	ib, err := orientationIfd(uint16(orientation))
	if err != nil {
		return nil, err
	}
	if err := sl.SetExif(ib); err != nil {
		return nil, fmt.Errorf("set exif: %w", err)
	}

	var out bytes.Buffer
	out.Grow(len(jpegData) + 64)
	if err := sl.Write(&out); err != nil {
		return nil, fmt.Errorf("write jpeg: %w", err)
	}
	return out.Bytes(), nil
}

// orientationIfd builds an IFD0 holding only the Orientation tag.
func orientationIfd(orientation uint16) (*exif.IfdBuilder, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, err
	}
	ib := exif.NewIfdBuilder(im, exif.NewTagIndex(), exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)
	if err := ib.AddStandardWithName("Orientation", []uint16{orientation}); err != nil {
		return nil, fmt.Errorf("orientation tag: %w", err)
	}
	return ib, nil
}
