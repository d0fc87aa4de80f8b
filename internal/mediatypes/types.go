package mediatypes

import (
	"path/filepath"
	"strings"
)

// Kind is the media variant an upload is dispatched on.
type Kind string

const (
	// KindImage is a still image (jpeg, png, gif).
	KindImage Kind = "image"
	// KindVideo is a video container.
	KindVideo Kind = "video"
)

// Image MIME types accepted for still images.
const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeGIF  = "image/gif"
)

// ValidExtensions lists the upload extensions accepted at validation time.
var ValidExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".ogv":  true,
	".mp4":  true,
	".webm": true,
	".mov":  true,
}

// ImageTypes maps image MIME types to whether they can be decoded and derived.
var ImageTypes = map[string]bool{
	MimeJPEG: true,
	MimePNG:  true,
	MimeGIF:  true,
}

// VideoTypes maps declared video MIME types to whether they are accepted.
var VideoTypes = map[string]bool{
	"video/mp4":       true,
	"video/ogg":       true,
	"video/webm":      true,
	"video/quicktime": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  MimeJPEG,
	".jpeg": MimeJPEG,
	".png":  MimePNG,
	".gif":  MimeGIF,
	".ogv":  "video/ogg",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
}

// Extension returns the lowercase extension of name including the dot.
func Extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// IsValidExtension reports whether the file name carries an accepted extension.
func IsValidExtension(name string) bool {
	return ValidExtensions[Extension(name)]
}

// IsVideo reports whether the declared MIME type is one of the video types.
func IsVideo(mimeType string) bool {
	return VideoTypes[normalize(mimeType)]
}

// IsSupportedImage reports whether the MIME type is a derivable still image.
func IsSupportedImage(mimeType string) bool {
	return ImageTypes[normalize(mimeType)]
}

// KindOf dispatches a declared MIME type to its media kind. Anything that is
// not a known video type is treated as an image and must pass the image probe.
func KindOf(mimeType string) Kind {
	if IsVideo(mimeType) {
		return KindVideo
	}
	return KindImage
}

// GetMimeType returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[strings.ToLower(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}

func normalize(mimeType string) string {
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}
