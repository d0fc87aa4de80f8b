// Package mediatypes holds the upload type tables shared by the ingestion
// pipeline, the derivation backends and the HTTP layer.
//
// It answers three questions about an upload:
//   - is the file extension accepted (ValidExtensions)
//   - is the declared MIME type a video (VideoTypes)
//   - can a still image be decoded and derived (ImageTypes)
//
// KindOf turns the declared MIME type into the Kind the pipeline dispatches
// on once at entry.
package mediatypes
