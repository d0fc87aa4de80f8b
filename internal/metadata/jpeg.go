package metadata

import (
	"errors"

	jis "github.com/dsoprea/go-jpeg-image-structure/v2"
)

var errNotJPEG = errors.New("not a jpeg stream")

// parseJPEG splits a JPEG stream into its marker segments.
func parseJPEG(data []byte) (*jis.SegmentList, error) {
	jmp := jis.NewJpegMediaParser()
	if !jmp.LooksLikeFormat(data) {
		return nil, errNotJPEG
	}
	mc, err := jmp.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	return mc.(*jis.SegmentList), nil
}
