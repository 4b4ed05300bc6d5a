// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package indexer

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/tomtom215/photarium/internal/catalog"
	"github.com/tomtom215/photarium/internal/events"
	"github.com/tomtom215/photarium/internal/extract"
	"github.com/tomtom215/photarium/internal/logging"
	"github.com/tomtom215/photarium/internal/metrics"
	"github.com/tomtom215/photarium/internal/models"
	"github.com/tomtom215/photarium/internal/spatial"
)

// applyIntent is the journal payload written before a batch mutates the
// catalog. An entry still pending at startup marks an interrupted apply.
type applyIntent struct {
	RootID    int64     `json:"root_id"`
	OpCount   int       `json:"op_count"`
	StartedAt time.Time `json:"started_at"`
}

// extraction is the per-op result of the parallel extraction stage.
type extraction struct {
	meta *extract.Metadata
	err  error
}

// applyOps executes one diffed batch. Extraction runs through the bounded
// worker pool; catalog and spatial index mutation stays on this goroutine
// so each root has exactly one writer. A per-file extraction failure
// becomes a metadata-error row and the batch continues. Only context
// cancellation aborts the batch, and only between records.
func (w *rootWorker) applyOps(ctx context.Context, ops []op) (applied, metaErrors int, err error) {
	results, err := w.extractAll(ctx, ops)
	if err != nil {
		return 0, 0, err
	}

	entryID := w.journalIntent(ctx, len(ops))

	applied, metaErrors, err = w.mutate(ctx, ops, results)
	w.journalOutcome(ctx, entryID, err)
	return applied, metaErrors, err
}

// extractAll runs metadata extraction for every add and update op, up to
// the configured worker limit in parallel. Results land in op order.
func (w *rootWorker) extractAll(ctx context.Context, ops []op) ([]extraction, error) {
	results := make([]extraction, len(ops))
	sem := make(chan struct{}, w.co.workerCount)
	var wg sync.WaitGroup

	for i := range ops {
		if ops[i].kind == opRemove {
			continue
		}
		if err := ctx.Err(); err != nil {
			break
		}
		if w.co.limiter != nil {
			if err := w.co.limiter.Wait(ctx); err != nil {
				break
			}
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			start := time.Now()
			meta, err := w.co.extractor.ExtractFile(ctx, ops[i].path)
			results[i] = extraction{meta: meta, err: err}

			mediaLabel := "unknown"
			if mt, ok := extract.MediaTypeForPath(ops[i].path); ok {
				mediaLabel = string(mt)
			}
			var exErr *extract.Error
			switch {
			case err == nil:
				metrics.RecordExtract(mediaLabel, time.Since(start), "")
			case errors.As(err, &exErr):
				metrics.RecordExtract(mediaLabel, time.Since(start), exErr.Reason)
			}
		}(i)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// mutate applies ops in order against the catalog and spatial index.
func (w *rootWorker) mutate(ctx context.Context, ops []op, results []extraction) (applied, metaErrors int, err error) {
	// Unconsumed removes indexed by content hash. An add whose extracted
	// hash matches one is the second half of a rename.
	removeByHash := make(map[string]int)
	for i := range ops {
		if ops[i].kind != opRemove || ops[i].record.ContentHash == "" {
			continue
		}
		if _, dup := removeByHash[ops[i].record.ContentHash]; !dup {
			removeByHash[ops[i].record.ContentHash] = i
		}
	}
	consumed := make([]bool, len(ops))

	for i := range ops {
		if err := ctx.Err(); err != nil {
			return applied, metaErrors, err
		}

		ok, isMetaError, err := w.applyOne(ctx, ops, results, removeByHash, consumed, i)
		if err != nil {
			return applied, metaErrors, err
		}
		if ok {
			applied++
		}
		if isMetaError {
			metaErrors++
		}
		w.setProgressCounts(i+1, metaErrors)
	}

	return applied, metaErrors, nil
}

// applyOne executes a single op. ok reports whether the op took effect;
// isMetaError marks an extraction failure retained as a flagged row. A
// non-nil error is always a cancellation, never a per-record failure.
func (w *rootWorker) applyOne(ctx context.Context, ops []op, results []extraction, removeByHash map[string]int, consumed []bool, i int) (ok, isMetaError bool, err error) {
	o := ops[i]

	if o.kind == opRemove {
		if consumed[i] {
			// Folded into a rename; the row moved instead of dying.
			return true, false, nil
		}
		if !w.deleteRecord(ctx, o.record) {
			return false, false, nil
		}
		metrics.RecordIndexOp(string(o.kind))
		return true, false, nil
	}

	res := results[i]
	if res.err != nil {
		var exErr *extract.Error
		if !errors.As(res.err, &exErr) {
			// Not a per-file failure: the extraction stage was cancelled
			// under this record.
			return false, false, res.err
		}
		if !w.recordMetaError(ctx, o, exErr) {
			return false, false, nil
		}
		metrics.RecordIndexOp(string(o.kind))
		return true, true, nil
	}

	if o.kind == opAdd {
		if j, hit := removeByHash[res.meta.ContentHash]; hit && !consumed[j] {
			if w.applyRename(ctx, ops[j].record, o.path) {
				consumed[j] = true
				metrics.RecordIndexOp("rename")
				return true, false, nil
			}
		}
	}

	if !w.upsertRecord(ctx, o, res.meta) {
		return false, false, nil
	}
	metrics.RecordIndexOp(string(o.kind))
	return true, false, nil
}

// applyRename repoints an existing row at a new path, preserving its id,
// thumbnail, and spatial index entry. Reports false when the row vanished
// underneath us and the caller should fall back to a plain add.
func (w *rootWorker) applyRename(ctx context.Context, prev *models.PhotoRecord, newPath string) bool {
	if err := w.co.catalog.UpdatePhotoPath(ctx, prev.ID, newPath); err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			logging.Error().Err(err).Int64("photo_id", prev.ID).
				Str("from", prev.Path).Str("to", newPath).
				Msg("Rename update failed, treating as separate add")
		}
		return false
	}

	logging.Debug().Int64("photo_id", prev.ID).
		Str("from", prev.Path).Str("to", newPath).
		Msg("Paired delete and create into rename")

	ev := events.NewFileEvent(w.root.ID, newPath, events.FileOpRename)
	ev.OldPath = prev.Path
	if err := w.co.bus.PublishFileEvent(ctx, ev); err != nil {
		logging.Warn().Err(err).Msg("Failed to publish rename event")
	}
	return true
}

// upsertRecord writes one extracted record and mirrors its coordinate into
// the spatial index inside the same commit. A failed write is retryable on
// the next cycle and never aborts the batch.
func (w *rootWorker) upsertRecord(ctx context.Context, o op, meta *extract.Metadata) bool {
	rec := w.buildRecord(o, meta)

	var appliedID int64
	id, err := w.co.catalog.UpsertPhotoAtomic(ctx, rec, func(id int64) error {
		appliedID = id
		return w.syncGrid(id, o.record, meta.Coordinate)
	})
	if err != nil {
		if appliedID != 0 && errors.Is(err, catalog.ErrCommitFailed) {
			w.revertGrid(appliedID, o.record)
		}
		logging.Error().Err(err).Str("path", o.path).Msg("Photo upsert failed, will retry next cycle")
		return false
	}

	if w.co.thumbs != nil && rec.ThumbStatus == models.ThumbStatusPending {
		w.co.thumbs.Request(id, o.path)
	}
	return true
}

// buildRecord assembles the catalog row for an extracted file. When an
// update leaves the content hash unchanged the previous thumbnail status
// survives, so moves and metadata-only edits do not re-render thumbnails.
func (w *rootWorker) buildRecord(o op, meta *extract.Metadata) *models.PhotoRecord {
	rec := &models.PhotoRecord{
		RootID:      w.root.ID,
		Path:        o.path,
		MediaType:   meta.MediaType,
		TakenAt:     meta.TakenAt,
		Coordinate:  meta.Coordinate,
		ContentHash: meta.ContentHash,
		SizeBytes:   meta.SizeBytes,
		ModTime:     meta.ModTime,
		ThumbStatus: models.ThumbStatusPending,
	}
	if o.record != nil && o.record.ContentHash == meta.ContentHash && o.record.ThumbStatus != "" {
		rec.ThumbStatus = o.record.ThumbStatus
	}
	return rec
}

// recordMetaError retains a failed extraction as a flagged row. The file
// stays visible in the library with its error, and a later content change
// re-attempts extraction.
func (w *rootWorker) recordMetaError(ctx context.Context, o op, exErr *extract.Error) bool {
	mediaType, _ := extract.MediaTypeForPath(o.path)
	rec := &models.PhotoRecord{
		RootID:      w.root.ID,
		Path:        o.path,
		MediaType:   mediaType,
		ThumbStatus: models.ThumbStatusFailed,
		MetaError:   exErr.Reason,
	}
	if info, err := os.Stat(o.path); err == nil {
		rec.SizeBytes = info.Size()
		rec.ModTime = info.ModTime().UTC()
	} else if o.record != nil {
		rec.SizeBytes = o.record.SizeBytes
		rec.ModTime = o.record.ModTime
	}

	var appliedID int64
	_, err := w.co.catalog.UpsertPhotoAtomic(ctx, rec, func(id int64) error {
		appliedID = id
		return w.syncGrid(id, o.record, nil)
	})
	if err != nil {
		if appliedID != 0 && errors.Is(err, catalog.ErrCommitFailed) {
			w.revertGrid(appliedID, o.record)
		}
		logging.Error().Err(err).Str("path", o.path).Msg("Metadata-error record write failed")
		return false
	}

	metrics.IndexMetadataErrors.Inc()
	logging.Warn().Str("path", o.path).Str("reason", exErr.Reason).
		Int64("root_id", w.root.ID).Msg("Extraction failed, file flagged")
	return true
}

// deleteRecord removes one row and its spatial index entry together.
func (w *rootWorker) deleteRecord(ctx context.Context, rec *models.PhotoRecord) bool {
	err := w.co.catalog.DeletePhotoAtomic(ctx, rec.ID, func() error {
		w.co.grid.Remove(rec.ID)
		return nil
	})
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		if errors.Is(err, catalog.ErrCommitFailed) {
			w.revertGrid(rec.ID, rec)
		}
		logging.Error().Err(err).Int64("photo_id", rec.ID).Str("path", rec.Path).
			Msg("Photo delete failed, will retry next cycle")
		return false
	}
	return true
}

// revertGrid restores one photo's spatial index entry to its pre-apply
// state after a commit failure. The row change rolled back, so the grid
// change from the apply callback must not survive it.
func (w *rootWorker) revertGrid(id int64, prev *models.PhotoRecord) {
	logging.Error().Int64("photo_id", id).
		Msg("Commit failed after index apply, reverting spatial index entry")
	if prev != nil && prev.HasCoordinate() {
		if err := w.co.grid.Update(id, *prev.Coordinate); err != nil {
			logging.Error().Err(err).Int64("photo_id", id).
				Msg("Spatial index revert failed, next scan re-derives the record")
		}
		return
	}
	w.co.grid.Remove(id)
}

// syncGrid reconciles one photo's spatial index entry with its new
// coordinate. prev is the prior catalog row, nil for fresh adds. An insert
// collision means the index disagrees with the catalog; the position is
// overwritten and the collision logged so the next scan can verify.
func (w *rootWorker) syncGrid(id int64, prev *models.PhotoRecord, coord *models.Coordinate) error {
	switch {
	case coord != nil && prev != nil && prev.HasCoordinate():
		return w.co.grid.Update(id, *coord)
	case coord != nil:
		err := w.co.grid.Insert(id, *coord)
		if errors.Is(err, spatial.ErrWriteConflict) {
			logging.Error().Int64("photo_id", id).
				Msg("Photo id already present in spatial index, overwriting position")
			return w.co.grid.Update(id, *coord)
		}
		return err
	case prev != nil && prev.HasCoordinate():
		w.co.grid.Remove(id)
		return nil
	default:
		return nil
	}
}

// journalIntent appends the batch's apply intent. Journal trouble is
// logged, not fatal: the startup rescan covers a session with no journal
// coverage at the cost of a full pass.
func (w *rootWorker) journalIntent(ctx context.Context, opCount int) string {
	if w.co.journal == nil {
		return ""
	}
	entryID, err := w.co.journal.Append(ctx, applyIntent{
		RootID:    w.root.ID,
		OpCount:   opCount,
		StartedAt: w.co.clock.Now().UTC(),
	})
	if err != nil {
		logging.Error().Err(err).Int64("root_id", w.root.ID).Msg("Journal append failed")
		return ""
	}
	return entryID
}

// journalOutcome resolves the batch's journal entry.
func (w *rootWorker) journalOutcome(ctx context.Context, entryID string, applyErr error) {
	if w.co.journal == nil || entryID == "" {
		return
	}

	// Resolution must survive the cycle context being cancelled.
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if applyErr != nil {
		if err := w.co.journal.MarkFailed(jctx, entryID, applyErr.Error()); err != nil {
			logging.Error().Err(err).Str("entry_id", entryID).Msg("Journal mark-failed failed")
		}
		return
	}
	if err := w.co.journal.MarkApplied(jctx, entryID); err != nil {
		logging.Error().Err(err).Str("entry_id", entryID).Msg("Journal mark-applied failed")
	}

	stats := w.co.journal.Stats()
	metrics.UpdateJournalStats(stats.PendingCount, stats.DBSizeBytes)
}
