// Package ingest turns an upload into a stored photo record.
//
// An upload moves through these stages, any of which can abort with an
// [*Error] of a specific [Kind]:
//
//	Validating -> Deduping -> Importing | DedupHit -> MetadataRead ->
//	OrientationFix -> DeriveAssets -> Persist -> Done
//
// Content is identified by its SHA-1 digest. When the digest is already
// stored, the new record shares the existing file and derived variants and
// the importing, orientation and derivation stages are skipped. The digest
// stays claimed from the duplicate lookup until the record is written, so
// concurrent uploads of the same bytes store one file.
//
// Only the thumbnail is mandatory among the derived assets. Medium and
// small variants are written concurrently with it and their failures are
// logged. An aborted ingestion writes no record; a file already imported
// into the library stays behind.
//
// With [Options.Soft] failures are reported in the [Result] instead of the
// returned error, which lets batch importers keep going.
package ingest
