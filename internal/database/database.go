package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"photoshelf/internal/filesystem"
	"photoshelf/internal/logging"
	"photoshelf/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when a photo or album does not exist.
var ErrNotFound = errors.New("not found")

// Database is the photo repository backed by SQLite.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens the SQLite file at dbPath, creating and migrating it as needed.
// The parent directory must already exist.
func New(ctx context.Context, dbPath string) (d *Database, err error) {
	checkFileModes(dbPath)

	// WAL and a busy timeout let concurrent imports share the file.
	dsn := dbPath + "?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err != nil {
			if cerr := db.Close(); cerr != nil {
				logging.Error("Closing database after failed open: %v", cerr)
			}
		}
	}()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	d = &Database{db: db, dbPath: dbPath}
	if err = d.migrate(ctx); err != nil {
		return nil, err
	}
	logging.Info("Database ready at %s", dbPath)
	return d, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Ping checks that the database still answers.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// recordQuery counts a query and its latency. A miss is not an error.
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// checkFileModes warns about a directory or database file the process
// cannot write. A read-only WAL file left behind by another user is made
// writable, since SQLite would otherwise fail every write.
func checkFileModes(dbPath string) {
	if err := filesystem.CheckWritable(filepath.Dir(dbPath)); err != nil {
		logging.Warn("Database directory is not writable: %v", err)
	}
	if info, err := os.Stat(dbPath); err == nil && info.Mode().Perm()&0o200 == 0 {
		logging.Warn("Database file %s is read-only (%v)", dbPath, info.Mode())
	}

	wal := dbPath + "-wal"
	info, err := os.Stat(wal)
	if err != nil || info.Mode().Perm()&0o200 != 0 {
		return
	}
	if err := os.Chmod(wal, 0o600); err != nil {
		logging.Error("WAL file %s is read-only and could not be fixed: %v", wal, err)
		return
	}
	logging.Info("Made read-only WAL file %s writable", wal)
}
