package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"photoshelf/internal/metrics"
)

const photoColumns = `id, title, description, tags, public, star, type, width, height, size,
	iso, aperture, make, model, lens, shutter, focal, takestamp, position,
	latitude, longitude, altitude, checksum, url, thumb_url, medium, small,
	album, license, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (*Photo, error) {
	var p Photo
	var createdAt int64
	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.Tags, &p.Public, &p.Star, &p.Type,
		&p.Width, &p.Height, &p.Size, &p.ISO, &p.Aperture, &p.Make, &p.Model,
		&p.Lens, &p.Shutter, &p.Focal, &p.Takestamp, &p.Position,
		&p.Latitude, &p.Longitude, &p.Altitude, &p.Checksum, &p.URL, &p.ThumbURL,
		&p.Medium, &p.Small, &p.AlbumID, &p.License, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	return &p, nil
}

// Insert stores a new photo record.
func (d *Database) Insert(ctx context.Context, p *Photo) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("insert_photo", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	_, err = d.db.ExecContext(ctx, `
	INSERT INTO photos (`+photoColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.Title, p.Description, p.Tags, p.Public, p.Star, p.Type,
		p.Width, p.Height, p.Size, p.ISO, p.Aperture, p.Make, p.Model,
		p.Lens, p.Shutter, p.Focal, p.Takestamp, p.Position,
		p.Latitude, p.Longitude, p.Altitude, p.Checksum, p.URL, p.ThumbURL,
		p.Medium, p.Small, p.AlbumID, p.License, p.CreatedAt.Unix(),
	)
	if err != nil {
		err = fmt.Errorf("insert photo %s: %w", p.ID, err)
	}
	return err
}

// FindByChecksum returns a record holding the given content checksum,
// ignoring excludeID. It returns nil and no error when there is none.
func (d *Database) FindByChecksum(ctx context.Context, checksum, excludeID string) (*Photo, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("find_by_checksum", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE checksum = ? AND id != ? ORDER BY created_at LIMIT 1`,
		checksum, excludeID)

	p, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, nil
	}
	return p, err
}

// Get returns the photo with the given id or ErrNotFound.
func (d *Database) Get(ctx context.Context, id string) (*Photo, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_photo", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	p, err := scanPhoto(d.db.QueryRowContext(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("photo %s: %w", id, ErrNotFound)
	}
	return p, err
}

// updatableColumns guards the column name spliced into updateColumn.
var updatableColumns = map[string]bool{
	"title":       true,
	"description": true,
	"tags":        true,
	"license":     true,
	"album":       true,
}

func (d *Database) updateColumn(ctx context.Context, id, column string, value any) error {
	if !updatableColumns[column] {
		return fmt.Errorf("column %q is not updatable", column)
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("update_photo", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx, `UPDATE photos SET `+column+` = ? WHERE id = ?`, value, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = fmt.Errorf("photo %s: %w", id, ErrNotFound)
	}
	return err
}

// SetTitle replaces the title.
func (d *Database) SetTitle(ctx context.Context, id, title string) error {
	return d.updateColumn(ctx, id, "title", title)
}

// SetDescription replaces the description.
func (d *Database) SetDescription(ctx context.Context, id, description string) error {
	return d.updateColumn(ctx, id, "description", description)
}

// SetTags replaces the comma separated tag list.
func (d *Database) SetTags(ctx context.Context, id, tags string) error {
	return d.updateColumn(ctx, id, "tags", tags)
}

// SetLicense replaces the license identifier.
func (d *Database) SetLicense(ctx context.Context, id, license string) error {
	return d.updateColumn(ctx, id, "license", license)
}

// SetAlbum moves the photo into albumID (0 for unsorted).
func (d *Database) SetAlbum(ctx context.Context, id string, albumID int64) error {
	return d.updateColumn(ctx, id, "album", albumID)
}

// ToggleStar flips the star flag and returns the new value.
func (d *Database) ToggleStar(ctx context.Context, id string) (bool, error) {
	return d.toggleColumn(ctx, id, "star")
}

// TogglePublic flips the public flag and returns the new value.
func (d *Database) TogglePublic(ctx context.Context, id string) (bool, error) {
	return d.toggleColumn(ctx, id, "public")
}

func (d *Database) toggleColumn(ctx context.Context, id, column string) (bool, error) {
	if column != "star" && column != "public" {
		return false, fmt.Errorf("column %q is not a flag", column)
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("update_photo", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value bool
	err = d.db.QueryRowContext(ctx,
		`UPDATE photos SET `+column+` = 1 - `+column+` WHERE id = ? RETURNING `+column, id).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("photo %s: %w", id, ErrNotFound)
	}
	return value, err
}

// Duplicate copies the record id under newID and returns the copy. Files
// are shared, not copied.
func (d *Database) Duplicate(ctx context.Context, id, newID string, albumID int64) (*Photo, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("duplicate_photo", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx, `
	INSERT INTO photos (`+photoColumns+`)
	SELECT ?, title, description, tags, public, star, type, width, height, size,
		iso, aperture, make, model, lens, shutter, focal, takestamp, position,
		latitude, longitude, altitude, checksum, url, thumb_url, medium, small,
		?, license, strftime('%s', 'now')
	FROM photos WHERE id = ?
	`, newID, albumID, id)
	if err != nil {
		return nil, fmt.Errorf("duplicate photo %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = fmt.Errorf("photo %s: %w", id, ErrNotFound)
		return nil, err
	}

	var p *Photo
	p, err = scanPhoto(d.db.QueryRowContext(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = ?`, newID))
	return p, err
}

// Delete removes the record. Files are the caller's concern.
func (d *Database) Delete(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_photo", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = fmt.Errorf("photo %s: %w", id, ErrNotFound)
	}
	return err
}

// GetStats counts records by kind and distinct stored files.
func (d *Database) GetStats(ctx context.Context) (metrics.Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats metrics.Stats
	err = d.db.QueryRowContext(ctx, `
	SELECT
		COALESCE(SUM(CASE WHEN type LIKE 'video/%' THEN 0 ELSE 1 END), 0),
		COALESCE(SUM(CASE WHEN type LIKE 'video/%' THEN 1 ELSE 0 END), 0),
		COUNT(DISTINCT checksum)
	FROM photos
	`).Scan(&stats.TotalImages, &stats.TotalVideos, &stats.UniqueFiles)
	return stats, err
}
