// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package catalog

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core catalog tables.
//
// Schema strategy: all columns are defined in the initial CREATE TABLE
// statements, giving a single source of truth and migration-free startup.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		`CREATE SEQUENCE IF NOT EXISTS roots_id_seq START 1`,
		`CREATE SEQUENCE IF NOT EXISTS photos_id_seq START 1`,

		// Roots: managed library subtrees with their indexing state.
		`CREATE TABLE IF NOT EXISTS roots (
			id BIGINT PRIMARY KEY DEFAULT nextval('roots_id_seq'),
			path TEXT NOT NULL UNIQUE,
			state TEXT NOT NULL DEFAULT 'idle',
			last_error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Photos: one row per media file under a root. (root_id, path) is the
		// filesystem identity; id is the stable record identity that survives
		// renames. lat/lng are NULL for files without a usable coordinate.
		`CREATE TABLE IF NOT EXISTS photos (
			id BIGINT PRIMARY KEY DEFAULT nextval('photos_id_seq'),
			root_id BIGINT NOT NULL,
			path TEXT NOT NULL,
			media_type TEXT NOT NULL,
			taken_at TIMESTAMP,
			lat DOUBLE,
			lng DOUBLE,
			content_hash TEXT NOT NULL,
			size_bytes BIGINT NOT NULL,
			mod_time TIMESTAMP NOT NULL,
			thumb_status TEXT NOT NULL DEFAULT 'pending',
			meta_error TEXT NOT NULL DEFAULT '',
			indexed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (root_id, path)
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// createIndexes creates indexes for the common query patterns: per-root
// listing (diff phase), hash lookup (rename detection), and geo warm-load.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_photos_root ON photos (root_id)`,
		`CREATE INDEX IF NOT EXISTS idx_photos_hash ON photos (content_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_photos_taken ON photos (taken_at)`,
		`CREATE INDEX IF NOT EXISTS idx_photos_geo ON photos (lat, lng)`,
	}

	for _, idx := range indexes {
		if _, err := db.conn.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", idx, err)
		}
	}

	return nil
}
