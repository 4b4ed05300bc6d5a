// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package indexer

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/tomtom215/photarium/internal/events"
	"github.com/tomtom215/photarium/internal/extract"
	"github.com/tomtom215/photarium/internal/models"
)

// opKind labels one catalog mutation produced by diffing.
type opKind string

const (
	opAdd    opKind = "add"
	opUpdate opKind = "update"
	opRemove opKind = "remove"
)

// op is one unit of apply work. Adds carry only a path; updates and
// removes carry the prior catalog row so apply can reconcile the spatial
// index and pair removes with adds for rename detection.
type op struct {
	kind   opKind
	path   string
	record *models.PhotoRecord
}

// photoLookup resolves a path to its catalog row, returning (nil, nil)
// when no row exists.
type photoLookup func(ctx context.Context, path string) (*models.PhotoRecord, error)

// sameStamp compares mod times at the catalog's timestamp precision so a
// round trip through storage does not read back as a change.
func sameStamp(a, b time.Time) bool {
	return a.Truncate(time.Microsecond).Equal(b.Truncate(time.Microsecond))
}

// changed reports whether a candidate differs from its catalog row in the
// attributes that gate re-extraction.
func changed(c candidate, rec *models.PhotoRecord) bool {
	return c.size != rec.SizeBytes || !sameStamp(c.modTime, rec.ModTime)
}

// diffFull compares a scan's candidate set against the catalog rows for
// the same root. Adds and updates come out in candidate (lexical) order,
// then removes in path order, so a fixed tree and catalog always produce
// the same op list. Unchanged files produce nothing, including files whose
// last extraction failed: a stable corrupt file stays a metadata-error row
// until its content changes.
func diffFull(candidates []candidate, existing []models.PhotoRecord) []op {
	byPath := make(map[string]*models.PhotoRecord, len(existing))
	for i := range existing {
		byPath[existing[i].Path] = &existing[i]
	}

	ops := make([]op, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		seen[c.path] = true
		rec, ok := byPath[c.path]
		if !ok {
			ops = append(ops, op{kind: opAdd, path: c.path})
			continue
		}
		if changed(c, rec) {
			ops = append(ops, op{kind: opUpdate, path: c.path, record: rec})
		}
	}

	var removedPaths []string
	for path := range byPath {
		if !seen[path] {
			removedPaths = append(removedPaths, path)
		}
	}
	sort.Strings(removedPaths)
	for _, path := range removedPaths {
		ops = append(ops, op{kind: opRemove, path: path, record: byPath[path]})
	}
	return ops
}

// diffEvents turns one coalesced watcher batch into ops. Each event is
// re-verified against the filesystem and the catalog, so stale or
// duplicated deliveries degrade to no-ops. Adds and updates keep batch
// arrival order and precede removes: apply pairs a remove with an add
// whose extracted content hash matches, which only works if the add is
// hashed before the remove executes.
func diffEvents(ctx context.Context, batch []*events.FileEvent, lookup photoLookup) ([]op, error) {
	var changes, removes []op

	for _, ev := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := lookup(ctx, ev.Path)
		if err != nil {
			return nil, err
		}

		switch ev.Op {
		case events.FileOpCreate, events.FileOpWrite:
			info, statErr := os.Stat(ev.Path)
			if statErr != nil {
				// Created then deleted inside one window, or the event
				// outlived the file. A catalog row means we still owe a
				// remove.
				if rec != nil {
					removes = append(removes, op{kind: opRemove, path: ev.Path, record: rec})
				}
				continue
			}
			if info.IsDir() {
				continue
			}
			if _, ok := extract.MediaTypeForPath(ev.Path); !ok {
				continue
			}
			c := candidate{path: ev.Path, modTime: info.ModTime().UTC(), size: info.Size()}
			switch {
			case rec == nil:
				changes = append(changes, op{kind: opAdd, path: ev.Path})
			case changed(c, rec):
				changes = append(changes, op{kind: opUpdate, path: ev.Path, record: rec})
			}
		case events.FileOpRemove:
			if rec != nil {
				removes = append(removes, op{kind: opRemove, path: ev.Path, record: rec})
			}
		}
	}

	return append(changes, removes...), nil
}
