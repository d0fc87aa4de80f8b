package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const lastImportKey = "last_import_run"

// GetSetting returns the value stored under key, or ErrNotFound.
func (d *Database) GetSetting(ctx context.Context, key string) (value string, err error) {
	defer func(start time.Time) { recordQuery("get_setting", start, err) }(time.Now())

	d.mu.RLock()
	defer d.mu.RUnlock()
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var v sql.NullString
	err = d.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return v.String, err
}

// SetSetting stores value under key, replacing any previous value.
func (d *Database) SetSetting(ctx context.Context, key, value string) (err error) {
	defer func(start time.Time) { recordQuery("set_setting", start, err) }(time.Now())

	d.mu.Lock()
	defer d.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// GetLastImportRun returns when the batch importer last finished, or the
// zero time if it never has.
func (d *Database) GetLastImportRun(ctx context.Context) (time.Time, error) {
	value, err := d.GetSetting(ctx, lastImportKey)
	switch {
	case errors.Is(err, ErrNotFound):
		return time.Time{}, nil
	case err != nil:
		return time.Time{}, err
	case value == "":
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}

// SetLastImportRun records when the batch importer finished. The zero
// time clears it.
func (d *Database) SetLastImportRun(ctx context.Context, t time.Time) error {
	value := ""
	if !t.IsZero() {
		value = t.UTC().Format(time.RFC3339)
	}
	return d.SetSetting(ctx, lastImportKey, value)
}
