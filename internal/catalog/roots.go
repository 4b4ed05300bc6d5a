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
	"time"

	"github.com/tomtom215/photarium/internal/models"
)

const rootColumns = `id, path, state, last_error, created_at, updated_at`

// CreateRoot registers a new library root in the idle state and writes the
// assigned id back to root.
func (db *DB) CreateRoot(ctx context.Context, root *models.Root) error {
	if root.State == "" {
		root.State = models.RootStateIdle
	}
	now := time.Now().UTC()

	var id int64
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO roots (path, state, last_error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		root.Path, string(root.State), root.LastError, now, now).Scan(&id)
	if err != nil {
		return mapWriteError(fmt.Errorf("failed to create root %s: %w", root.Path, err))
	}

	root.ID = id
	root.CreatedAt = now
	root.UpdatedAt = now
	return nil
}

// GetRoot fetches one root by id.
func (db *DB) GetRoot(ctx context.Context, id int64) (*models.Root, error) {
	query := `SELECT ` + rootColumns + ` FROM roots WHERE id = ?`
	root, err := scanRoot(db.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get root %d: %w", id, err)
	}
	return root, nil
}

// GetRootByPath fetches one root by its registered path.
func (db *DB) GetRootByPath(ctx context.Context, path string) (*models.Root, error) {
	query := `SELECT ` + rootColumns + ` FROM roots WHERE path = ?`
	root, err := scanRoot(db.conn.QueryRowContext(ctx, query, path))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get root %s: %w", path, err)
	}
	return root, nil
}

// ListRoots returns all registered roots, oldest first.
func (db *DB) ListRoots(ctx context.Context) ([]models.Root, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+rootColumns+` FROM roots ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roots: %w", err)
	}
	defer closeQuietly(rows)

	var roots []models.Root
	for rows.Next() {
		root, err := scanRoot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan root: %w", err)
		}
		roots = append(roots, *root)
	}
	return roots, rows.Err()
}

// UpdateRootState persists a state machine transition. Legality is enforced
// by the coordinator before calling; the catalog records whatever the state
// machine decided.
func (db *DB) UpdateRootState(ctx context.Context, id int64, state models.RootState, lastError string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE roots SET state = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		string(state), lastError, time.Now().UTC(), id)
	if err != nil {
		return mapWriteError(fmt.Errorf("failed to update root %d state: %w", id, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRoot removes a root and all of its photos in one transaction and
// reports how many photo rows went with it.
func (db *DB) DeleteRoot(ctx context.Context, id int64) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin root delete: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM photos WHERE root_id = ?`, id)
	if err != nil {
		rollbackQuietly(tx)
		return 0, mapWriteError(fmt.Errorf("failed to delete photos for root %d: %w", id, err))
	}
	photosDeleted, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM roots WHERE id = ?`, id)
	if err != nil {
		rollbackQuietly(tx)
		return 0, mapWriteError(fmt.Errorf("failed to delete root %d: %w", id, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		rollbackQuietly(tx)
		return 0, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return 0, mapWriteError(fmt.Errorf("failed to commit root delete: %w", err))
	}
	return photosDeleted, nil
}

func scanRoot(row rowScanner) (*models.Root, error) {
	var (
		root  models.Root
		state string
	)
	err := row.Scan(&root.ID, &root.Path, &state, &root.LastError,
		&root.CreatedAt, &root.UpdatedAt)
	if err != nil {
		return nil, err
	}
	root.State = models.RootState(state)
	return &root, nil
}
