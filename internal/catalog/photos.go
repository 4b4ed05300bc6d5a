// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/photarium/internal/models"
)

// photoColumns is the canonical column list for photo scans.
const photoColumns = `id, root_id, path, media_type, taken_at, lat, lng,
	content_hash, size_bytes, mod_time, thumb_status, meta_error, indexed_at`

// upsertPhotoSQL inserts a photo or, when (root_id, path) already exists,
// refreshes the row in place. The id column is never touched on conflict, so
// record identity survives metadata updates.
const upsertPhotoSQL = `INSERT INTO photos (
		root_id, path, media_type, taken_at, lat, lng,
		content_hash, size_bytes, mod_time, thumb_status, meta_error, indexed_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (root_id, path) DO UPDATE SET
		media_type = EXCLUDED.media_type,
		taken_at = EXCLUDED.taken_at,
		lat = EXCLUDED.lat,
		lng = EXCLUDED.lng,
		content_hash = EXCLUDED.content_hash,
		size_bytes = EXCLUDED.size_bytes,
		mod_time = EXCLUDED.mod_time,
		thumb_status = EXCLUDED.thumb_status,
		meta_error = EXCLUDED.meta_error,
		indexed_at = EXCLUDED.indexed_at
	RETURNING id`

// UpsertPhoto inserts or refreshes a photo row and returns its stable id.
// The id is also written back to rec. This is the apply phase hot path, so
// the statement is prepared once and cached.
func (db *DB) UpsertPhoto(ctx context.Context, rec *models.PhotoRecord) (int64, error) {
	stmt, err := db.getStmt(ctx, upsertPhotoSQL)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := stmt.QueryRowContext(ctx, upsertArgs(rec)...).Scan(&id); err != nil {
		return 0, mapWriteError(fmt.Errorf("failed to upsert photo %s: %w", rec.Path, err))
	}
	rec.ID = id
	return id, nil
}

// UpsertPhotoAtomic runs the upsert and the caller's apply function inside
// one transaction. If apply returns an error the row change rolls back, so
// the catalog and the in-memory index cannot drift apart on failure. A
// commit failure after apply returns ErrCommitFailed; the caller must
// revert apply's side effects, since the row change did not land.
func (db *DB) UpsertPhotoAtomic(ctx context.Context, rec *models.PhotoRecord, apply func(id int64) error) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin upsert transaction: %w", err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, upsertPhotoSQL, upsertArgs(rec)...).Scan(&id); err != nil {
		rollbackQuietly(tx)
		return 0, mapWriteError(fmt.Errorf("failed to upsert photo %s: %w", rec.Path, err))
	}

	if err := apply(id); err != nil {
		rollbackQuietly(tx)
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: upsert of %s: %w", ErrCommitFailed, rec.Path, mapWriteError(err))
	}
	rec.ID = id
	return id, nil
}

// DeletePhotoAtomic deletes a photo row and runs the caller's apply function
// inside one transaction, rolling the delete back if apply fails.
func (db *DB) DeletePhotoAtomic(ctx context.Context, id int64, apply func() error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id)
	if err != nil {
		rollbackQuietly(tx)
		return mapWriteError(fmt.Errorf("failed to delete photo %d: %w", id, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		rollbackQuietly(tx)
		return ErrNotFound
	}

	if err := apply(); err != nil {
		rollbackQuietly(tx)
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: delete of %d: %w", ErrCommitFailed, id, mapWriteError(err))
	}
	return nil
}

// GetPhoto fetches one photo by id.
func (db *DB) GetPhoto(ctx context.Context, id int64) (*models.PhotoRecord, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE id = ?`
	rec, err := scanPhoto(db.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get photo %d: %w", id, err)
	}
	return rec, nil
}

// GetPhotoByPath fetches one photo by its filesystem identity.
func (db *DB) GetPhotoByPath(ctx context.Context, rootID int64, path string) (*models.PhotoRecord, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE root_id = ? AND path = ?`
	rec, err := scanPhoto(db.conn.QueryRowContext(ctx, query, rootID, path))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get photo %s: %w", path, err)
	}
	return rec, nil
}

// GetPhotosByIDs fetches photos for a set of ids, ordered newest first with
// untimestamped records last. Missing ids are silently absent from the
// result; the spatial index may briefly reference rows a concurrent delete
// already removed.
func (db *DB) GetPhotosByIDs(ctx context.Context, ids []int64) ([]models.PhotoRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?, ", len(ids)-1) + "?"
	query := `SELECT ` + photoColumns + ` FROM photos WHERE id IN (` + placeholders + `)
		ORDER BY taken_at DESC NULLS LAST, id`

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query photos by ids: %w", err)
	}
	defer closeQuietly(rows)

	return collectPhotos(rows)
}

// ListPhotosByRoot returns every photo row under a root. The diff phase
// loads this once per cycle and compares it against the filesystem walk.
func (db *DB) ListPhotosByRoot(ctx context.Context, rootID int64) ([]models.PhotoRecord, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE root_id = ? ORDER BY path`
	rows, err := db.conn.QueryContext(ctx, query, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos for root %d: %w", rootID, err)
	}
	defer closeQuietly(rows)

	return collectPhotos(rows)
}

// GeoPoint is the projection used to warm-start the spatial index.
type GeoPoint struct {
	ID  int64
	Lat float64
	Lng float64
}

// ListGeotagged returns the id and coordinate of every photo that has one.
func (db *DB) ListGeotagged(ctx context.Context) ([]GeoPoint, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, lat, lng FROM photos WHERE lat IS NOT NULL AND lng IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to list geotagged photos: %w", err)
	}
	defer closeQuietly(rows)

	var points []GeoPoint
	for rows.Next() {
		var p GeoPoint
		if err := rows.Scan(&p.ID, &p.Lat, &p.Lng); err != nil {
			return nil, fmt.Errorf("failed to scan geotagged photo: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// UpdatePhotoPath moves a photo to a new path, preserving its id. Used when
// a delete+create pair is recognized as a rename.
func (db *DB) UpdatePhotoPath(ctx context.Context, id int64, newPath string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE photos SET path = ?, indexed_at = ? WHERE id = ?`,
		newPath, time.Now().UTC(), id)
	if err != nil {
		return mapWriteError(fmt.Errorf("failed to move photo %d: %w", id, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetThumbStatus updates the thumbnail pipeline status for a photo.
func (db *DB) SetThumbStatus(ctx context.Context, id int64, status models.ThumbStatus) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE photos SET thumb_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return mapWriteError(fmt.Errorf("failed to set thumb status for %d: %w", id, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePhoto removes one photo row.
func (db *DB) DeletePhoto(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id)
	if err != nil {
		return mapWriteError(fmt.Errorf("failed to delete photo %d: %w", id, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePhotosByRoot removes every photo under a root and reports how many
// rows were deleted.
func (db *DB) DeletePhotosByRoot(ctx context.Context, rootID int64) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM photos WHERE root_id = ?`, rootID)
	if err != nil {
		return 0, mapWriteError(fmt.Errorf("failed to delete photos for root %d: %w", rootID, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// CountPhotosByRoot returns the number of photo rows under a root.
func (db *DB) CountPhotosByRoot(ctx context.Context, rootID int64) (int64, error) {
	var n int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM photos WHERE root_id = ?`, rootID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count photos for root %d: %w", rootID, err)
	}
	return n, nil
}

// upsertArgs flattens a PhotoRecord into the upsert parameter list.
func upsertArgs(rec *models.PhotoRecord) []interface{} {
	var takenAt interface{}
	if rec.TakenAt != nil {
		takenAt = rec.TakenAt.UTC()
	}
	var lat, lng interface{}
	if rec.Coordinate != nil {
		lat = rec.Coordinate.Lat
		lng = rec.Coordinate.Lng
	}
	indexedAt := rec.IndexedAt
	if indexedAt.IsZero() {
		indexedAt = time.Now().UTC()
	}
	thumbStatus := rec.ThumbStatus
	if thumbStatus == "" {
		thumbStatus = models.ThumbStatusPending
	}

	return []interface{}{
		rec.RootID, rec.Path, string(rec.MediaType), takenAt, lat, lng,
		rec.ContentHash, rec.SizeBytes, rec.ModTime.UTC(), string(thumbStatus),
		rec.MetaError, indexedAt,
	}
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan code.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanPhoto reads one photo row.
func scanPhoto(row rowScanner) (*models.PhotoRecord, error) {
	var (
		rec       models.PhotoRecord
		mediaType string
		takenAt   sql.NullTime
		lat, lng  sql.NullFloat64
		thumb     string
	)

	err := row.Scan(&rec.ID, &rec.RootID, &rec.Path, &mediaType, &takenAt,
		&lat, &lng, &rec.ContentHash, &rec.SizeBytes, &rec.ModTime,
		&thumb, &rec.MetaError, &rec.IndexedAt)
	if err != nil {
		return nil, err
	}

	rec.MediaType = models.MediaType(mediaType)
	rec.ThumbStatus = models.ThumbStatus(thumb)
	if takenAt.Valid {
		t := takenAt.Time.UTC()
		rec.TakenAt = &t
	}
	if lat.Valid && lng.Valid {
		rec.Coordinate = &models.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &rec, nil
}

// collectPhotos drains a result set into a slice.
func collectPhotos(rows *sql.Rows) ([]models.PhotoRecord, error) {
	var photos []models.PhotoRecord
	for rows.Next() {
		rec, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, *rec)
	}
	return photos, rows.Err()
}

// rollbackQuietly rolls back a transaction, ignoring the error; rollback
// failures after a failed statement are not actionable.
func rollbackQuietly(tx *sql.Tx) {
	_ = tx.Rollback()
}
