package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateAlbum adds an album and returns its id.
func (d *Database) CreateAlbum(ctx context.Context, title string) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_album", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx, `INSERT INTO albums (title) VALUES (?)`, title)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetAlbum returns the album with the given id or ErrNotFound.
func (d *Database) GetAlbum(ctx context.Context, id int64) (*Album, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_album", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var a Album
	var createdAt int64
	err = d.db.QueryRowContext(ctx, `
	SELECT id, title, description, public, license, min_takestamp, max_takestamp, created_at
	FROM albums WHERE id = ?
	`, id).Scan(&a.ID, &a.Title, &a.Description, &a.Public, &a.License, &a.MinTakestamp, &a.MaxTakestamp, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("album %d: %w", id, ErrNotFound)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt = time.Unix(createdAt, 0)
	return &a, nil
}

// UpdateAlbumTakestampBounds widens the album's capture time range to
// include ts. Bounds never shrink here; zero bounds count as unset. Album 0
// and a zero ts are ignored.
func (d *Database) UpdateAlbumTakestampBounds(ctx context.Context, albumID, ts int64) error {
	if albumID == 0 || ts == 0 {
		return nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("update_album_bounds", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
	UPDATE albums SET
		min_takestamp = CASE WHEN min_takestamp = 0 OR ?1 < min_takestamp THEN ?1 ELSE min_takestamp END,
		max_takestamp = CASE WHEN max_takestamp = 0 OR ?1 > max_takestamp THEN ?1 ELSE max_takestamp END
	WHERE id = ?2
	`, ts, albumID)
	return err
}

// RecomputeAlbumTakestamps resets the album's bounds from its current
// photos. Used after photos leave an album.
func (d *Database) RecomputeAlbumTakestamps(ctx context.Context, albumID int64) error {
	if albumID == 0 {
		return nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("recompute_album_bounds", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
	UPDATE albums SET
		min_takestamp = COALESCE((SELECT MIN(takestamp) FROM photos WHERE album = ?1 AND takestamp != 0), 0),
		max_takestamp = COALESCE((SELECT MAX(takestamp) FROM photos WHERE album = ?1 AND takestamp != 0), 0)
	WHERE id = ?1
	`, albumID)
	return err
}

// SetAlbumLicense replaces the album's license identifier.
func (d *Database) SetAlbumLicense(ctx context.Context, id int64, license string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_album", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx, `UPDATE albums SET license = ? WHERE id = ?`, license, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = fmt.Errorf("album %d: %w", id, ErrNotFound)
	}
	return err
}
