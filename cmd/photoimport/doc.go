// Command photoimport adds files from the local filesystem to the library.
//
// It reads the same configuration as the server and runs every file
// through the ingestion pipeline with a bounded worker pool. Failures are
// reported per file and do not stop the batch.
//
// Usage:
//
//	photoimport [--album ID|s|f|r] [--skip-duplicates] [--delete-imported] [--workers N] PATH...
//
// Directories are walked recursively, skipping hidden directories and
// files with unsupported extensions. The exit status is non-zero when any
// file failed.
package main
