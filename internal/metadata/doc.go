// Package metadata reads descriptive and technical metadata from uploaded
// images.
//
// Extract always probes pixel geometry and MIME type from the image header;
// that probe is the only mandatory step and its failure is reported as
// ErrUnreadableImage. Everything else degrades to empty fields:
//
//   - IPTC (APP13) supplies title, description, tags and a position string.
//   - EXIF supplies orientation, camera, exposure, capture time and GPS. For
//     JPEGs it is read through exiftool when enabled and installed, otherwise
//     with the in-process reader. Exactly one source is used per call.
//
// Values are normalized before they are returned: shutter speeds as reduced
// fractions, focal lengths in mm, capture time as epoch seconds within the
// signed 32-bit range, and any field that is not valid UTF-8 is cleared.
package metadata
