// Package database is the SQLite photo repository.
//
// It stores photo records, albums with their capture time bounds, and a
// small key/value settings table. The connection runs in WAL mode with a
// busy timeout; every operation is bounded by a 5 second context and
// reported to the query metrics.
package database
