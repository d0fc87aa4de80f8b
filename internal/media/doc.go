// Package media transforms imported originals: it bakes EXIF orientation
// into JPEG pixels and derives thumbnails and scaled variants.
//
// Two image backends implement the Backend interface. The rich backend uses
// libvips through govips and is chosen when InitVips succeeded; the basic
// backend uses the imaging package and is always available. Derivations
// that fail on the rich backend are retried once on the basic one.
//
// Video thumbnails extract the middle frame with ffmpeg and reuse the still
// image routine. All derived files are written to a temporary file in the
// target directory and renamed into place.
package media
