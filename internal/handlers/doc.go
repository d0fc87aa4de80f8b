// Package handlers provides the HTTP handlers of the photo library API.
//
// It includes handlers for:
//   - Multipart uploads run through the ingestion pipeline
//   - Reading and editing photos (title, description, tags, license, album, flags)
//   - Duplicating and deleting photos
//   - Downloading the full, medium or small file as an attachment
//   - Health checks, version and library stats
package handlers
