// Package filesystem provides the file primitives used by the content store
// and the derivation backends.
//
// # Publishing
//
// Derived assets and imported originals are never written in place. Writers
// obtain a temporary file in the destination directory via CreateTemp, write
// the full content, and call Publish which fsyncs and renames it onto the
// final path. Readers therefore see either no file or a complete one.
//
// MoveFile renames when source and destination share a filesystem and falls
// back to copy+publish+remove across devices. CopyFile always copies.
//
// # NFS Resilience
//
// Upload roots are frequently NFS mounts. StatWithRetry and OpenWithRetry retry
// on ESTALE (stale file handle) with exponential backoff.
//
//	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
//
// # Metrics
//
// Operations report through an Observer keyed by volume name ("big", "medium",
// "small", "thumb"). The metrics package provides the Prometheus
// implementation; when no observer is set, recording is skipped.
package filesystem
