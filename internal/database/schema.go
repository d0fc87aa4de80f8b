package database

import (
	"context"
	"fmt"

	"photoshelf/internal/logging"
)

// schema creates the tables of a new library. Album 0 is "unsorted" and
// has no row.
const schema = `
CREATE TABLE IF NOT EXISTS photos (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	tags        TEXT NOT NULL DEFAULT '',
	public      INTEGER NOT NULL DEFAULT 0,
	star        INTEGER NOT NULL DEFAULT 0,
	type        TEXT NOT NULL,
	width       INTEGER NOT NULL DEFAULT 0,
	height      INTEGER NOT NULL DEFAULT 0,
	size        TEXT NOT NULL DEFAULT '',
	iso         TEXT NOT NULL DEFAULT '',
	aperture    TEXT NOT NULL DEFAULT '',
	make        TEXT NOT NULL DEFAULT '',
	model       TEXT NOT NULL DEFAULT '',
	lens        TEXT NOT NULL DEFAULT '',
	shutter     TEXT NOT NULL DEFAULT '',
	focal       TEXT NOT NULL DEFAULT '',
	takestamp   INTEGER NOT NULL DEFAULT 0,
	position    TEXT NOT NULL DEFAULT '',
	latitude    TEXT NOT NULL DEFAULT '',
	longitude   TEXT NOT NULL DEFAULT '',
	altitude    TEXT NOT NULL DEFAULT '',
	checksum    TEXT NOT NULL,
	url         TEXT NOT NULL,
	thumb_url   TEXT NOT NULL DEFAULT '',
	medium      INTEGER NOT NULL DEFAULT 0,
	small       INTEGER NOT NULL DEFAULT 0,
	album       INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_photos_checksum  ON photos(checksum);
CREATE INDEX IF NOT EXISTS idx_photos_album     ON photos(album);
CREATE INDEX IF NOT EXISTS idx_photos_takestamp ON photos(takestamp);

CREATE TABLE IF NOT EXISTS albums (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	public        INTEGER NOT NULL DEFAULT 0,
	min_takestamp INTEGER NOT NULL DEFAULT 0,
	max_takestamp INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT
);
`

// column is a column added after the first release. Older databases get
// it through ALTER TABLE.
type column struct {
	table, name, ddl string
}

// addedColumns are applied in order. An empty license inherits from the
// album, then from the configured default.
var addedColumns = []column{
	{"photos", "license", `ALTER TABLE photos ADD COLUMN license TEXT NOT NULL DEFAULT ''`},
	{"albums", "license", `ALTER TABLE albums ADD COLUMN license TEXT NOT NULL DEFAULT ''`},
}

func (d *Database) migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	for _, c := range addedColumns {
		var present int
		err := d.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, c.table, c.name).Scan(&present)
		if err != nil {
			return fmt.Errorf("inspect %s.%s: %w", c.table, c.name, err)
		}
		if present > 0 {
			continue
		}
		if _, err := d.db.ExecContext(ctx, c.ddl); err != nil {
			return fmt.Errorf("add %s.%s: %w", c.table, c.name, err)
		}
		logging.Info("Database migrated: added %s.%s", c.table, c.name)
	}
	return nil
}
