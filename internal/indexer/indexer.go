// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

// Package indexer owns the library indexing lifecycle. One worker
// goroutine per root drives the state machine idle -> scanning -> diffing
// -> applying -> idle; filesystem events are debounced into incremental
// cycles, interruptions in the event stream fall back to full rescans, and
// all catalog and spatial index writes for a root flow through its worker
// so cycles never interleave. Distinct roots index concurrently.
//
// Rename detection pairs a remove and an add observed inside one debounce
// window by content hash and folds them into a path update that preserves
// the photo id, its spatial index entry, and its thumbnail.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/photarium/internal/catalog"
	"github.com/tomtom215/photarium/internal/config"
	"github.com/tomtom215/photarium/internal/events"
	"github.com/tomtom215/photarium/internal/extract"
	"github.com/tomtom215/photarium/internal/journal"
	"github.com/tomtom215/photarium/internal/logging"
	"github.com/tomtom215/photarium/internal/metrics"
	"github.com/tomtom215/photarium/internal/models"
	"github.com/tomtom215/photarium/internal/spatial"
	"github.com/tomtom215/photarium/internal/watcher"
)

// maxDefaultWorkers caps the extraction pool when sized from NumCPU, so a
// large host does not hold dozens of media files open at once.
const maxDefaultWorkers = 8

// defaultDebounce is the event coalescing window when none is configured.
const defaultDebounce = 300 * time.Millisecond

// Catalog is the slice of the catalog store the coordinator mutates and
// reads. *catalog.DB satisfies it.
type Catalog interface {
	CreateRoot(ctx context.Context, root *models.Root) error
	GetRoot(ctx context.Context, id int64) (*models.Root, error)
	GetRootByPath(ctx context.Context, path string) (*models.Root, error)
	ListRoots(ctx context.Context) ([]models.Root, error)
	UpdateRootState(ctx context.Context, id int64, state models.RootState, lastError string) error
	DeleteRoot(ctx context.Context, id int64) (int64, error)

	GetPhotoByPath(ctx context.Context, rootID int64, path string) (*models.PhotoRecord, error)
	ListPhotosByRoot(ctx context.Context, rootID int64) ([]models.PhotoRecord, error)
	UpsertPhotoAtomic(ctx context.Context, rec *models.PhotoRecord, apply func(id int64) error) (int64, error)
	DeletePhotoAtomic(ctx context.Context, id int64, apply func() error) error
	UpdatePhotoPath(ctx context.Context, id int64, newPath string) error
}

// ThumbRequester accepts fire-and-forget thumbnail render requests. The
// coordinator never blocks indexing on thumbnail readiness; status flows
// back asynchronously onto the photo row.
type ThumbRequester interface {
	Request(photoID int64, path string)
}

// Coordinator orchestrates indexing across all managed roots.
type Coordinator struct {
	catalog   Catalog
	grid      *spatial.Grid
	extractor *extract.Extractor
	journal   *journal.Journal
	bus       *events.Bus
	thumbs    ThumbRequester
	watch     *watcher.Watcher
	cfg       config.LibraryConfig

	clock       Clock
	limiter     *rate.Limiter
	workerCount int
	debounce    time.Duration

	mu       sync.RWMutex
	running  bool
	roots    map[int64]*rootWorker
	watchers map[int64]context.CancelFunc
	cancel   context.CancelFunc
	runCtx   context.Context
	wg       sync.WaitGroup
}

// New wires a coordinator. The journal may be nil when durability tracking
// is disabled; every other dependency is required.
func New(cat Catalog, grid *spatial.Grid, extractor *extract.Extractor, jnl *journal.Journal, bus *events.Bus, cfg config.LibraryConfig) *Coordinator {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers > maxDefaultWorkers {
			workers = maxDefaultWorkers
		}
	}
	debounce := cfg.DebounceWindow
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	var limiter *rate.Limiter
	if cfg.ExtractRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ExtractRate), cfg.ExtractRate)
	}

	co := &Coordinator{
		catalog:     cat,
		grid:        grid,
		extractor:   extractor,
		journal:     jnl,
		bus:         bus,
		cfg:         cfg,
		clock:       systemClock{},
		limiter:     limiter,
		workerCount: workers,
		debounce:    debounce,
		roots:       make(map[int64]*rootWorker),
		watchers:    make(map[int64]context.CancelFunc),
	}
	co.watch = watcher.New(bus, co.onWatcherInterrupted)

	logging.Info().
		Int("workers", workers).
		Dur("debounce_window", debounce).
		Bool("watch_enabled", cfg.WatchEnabled).
		Int("extract_rate", cfg.ExtractRate).
		Msg("Index coordinator config loaded")
	return co
}

// SetThumbRequester attaches the thumbnail collaborator. Must be called
// before Start.
func (co *Coordinator) SetThumbRequester(t ThumbRequester) {
	co.thumbs = t
}

// Start recovers the journal, subscribes to filesystem events, and brings
// up one worker (plus watcher) per known root. Roots listed in the
// configuration but missing from the catalog are registered. Every active
// root gets a full startup scan to reconcile changes made while the
// process was down.
func (co *Coordinator) Start(ctx context.Context) error {
	co.mu.Lock()
	if co.running {
		co.mu.Unlock()
		return fmt.Errorf("index coordinator is already running")
	}
	co.running = true
	runCtx, cancel := context.WithCancel(ctx)
	co.runCtx = runCtx
	co.cancel = cancel
	co.mu.Unlock()

	logging.Info().Msg("Starting index coordinator...")

	co.recoverJournal(runCtx)

	fileCh, err := co.bus.SubscribeFiles(runCtx)
	if err != nil {
		return fmt.Errorf("subscribe to file events: %w", err)
	}
	co.wg.Add(1)
	go co.routeEvents(runCtx, fileCh)

	roots, err := co.catalog.ListRoots(runCtx)
	if err != nil {
		return fmt.Errorf("list roots: %w", err)
	}
	for i := range roots {
		if roots[i].State == models.RootStateStopped {
			continue
		}
		co.startRoot(runCtx, roots[i], triggerStartup)
	}

	co.registerConfiguredRoots(runCtx)

	co.mu.RLock()
	active := len(co.roots)
	co.mu.RUnlock()
	logging.Info().Int("roots", active).Msg("Index coordinator started")
	return nil
}

// Stop cancels all workers and watchers and waits for them to exit. Roots
// keep their persisted states; a later session resumes them.
func (co *Coordinator) Stop() error {
	co.mu.Lock()
	if !co.running {
		co.mu.Unlock()
		return fmt.Errorf("index coordinator is not running")
	}
	co.running = false
	cancel := co.cancel
	workers := make([]*rootWorker, 0, len(co.roots))
	for _, w := range co.roots {
		workers = append(workers, w)
	}
	co.mu.Unlock()

	logging.Info().Msg("Stopping index coordinator...")
	cancel()
	for _, w := range workers {
		<-w.done
	}
	co.wg.Wait()
	logging.Info().Msg("Index coordinator stopped")
	return nil
}

// AddRoot registers a new directory for indexing and starts its worker
// immediately when the coordinator is running. The initial full scan runs
// asynchronously; callers follow it through Progress.
func (co *Coordinator) AddRoot(ctx context.Context, path string) (*models.Root, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRootGone, abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootGone, abs)
	}

	root := &models.Root{Path: abs, State: models.RootStateIdle}
	if err := co.catalog.CreateRoot(ctx, root); err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}
	logging.Info().Int64("root_id", root.ID).Str("path", abs).Msg("Root registered")

	co.mu.RLock()
	running := co.running
	runCtx := co.runCtx
	co.mu.RUnlock()
	if running {
		co.startRoot(runCtx, *root, triggerManual)
	}
	return root, nil
}

// RemoveRoot stops a root's worker and watcher, discards its queued
// events, and deletes its photos from the catalog and the spatial index.
// An in-flight cycle is cancelled at its next checkpoint.
func (co *Coordinator) RemoveRoot(ctx context.Context, rootID int64) error {
	co.mu.Lock()
	w := co.roots[rootID]
	delete(co.roots, rootID)
	cancelWatch := co.watchers[rootID]
	delete(co.watchers, rootID)
	co.mu.Unlock()

	if cancelWatch != nil {
		cancelWatch()
	}
	if w != nil {
		w.abortCycle()
		if err := w.request(ctx, cmdStop); err != nil {
			logging.Warn().Err(err).Int64("root_id", rootID).Msg("Worker stop did not complete cleanly")
		}
	}

	photos, err := co.catalog.ListPhotosByRoot(ctx, rootID)
	if err != nil {
		return fmt.Errorf("list photos for removal: %w", err)
	}
	for i := range photos {
		if photos[i].HasCoordinate() {
			co.grid.Remove(photos[i].ID)
		}
	}

	deleted, err := co.catalog.DeleteRoot(ctx, rootID)
	if err != nil {
		return err
	}
	logging.Info().Int64("root_id", rootID).Int64("photos_deleted", deleted).Msg("Root removed")
	return nil
}

// RescanRoot runs a full scan cycle for one root and blocks until it
// finishes. This is also the explicit action that revives a root from the
// error state.
func (co *Coordinator) RescanRoot(ctx context.Context, rootID int64) error {
	co.mu.RLock()
	w := co.roots[rootID]
	co.mu.RUnlock()

	if w == nil {
		if _, err := co.catalog.GetRoot(ctx, rootID); err != nil {
			return err
		}
		return fmt.Errorf("root %d has no active worker", rootID)
	}
	return w.request(ctx, cmdRescan)
}

// Progress reports the live indexing snapshot for one root. Roots without
// an active worker answer from their persisted state.
func (co *Coordinator) Progress(ctx context.Context, rootID int64) (models.IndexProgress, error) {
	co.mu.RLock()
	w := co.roots[rootID]
	co.mu.RUnlock()

	if w != nil {
		return w.progress(), nil
	}

	root, err := co.catalog.GetRoot(ctx, rootID)
	if err != nil {
		return models.IndexProgress{}, err
	}
	return models.IndexProgress{
		RootID:    root.ID,
		State:     root.State,
		UpdatedAt: root.UpdatedAt,
	}, nil
}

// ProgressAll reports snapshots for every root with an active worker,
// ordered by root id.
func (co *Coordinator) ProgressAll() []models.IndexProgress {
	co.mu.RLock()
	snaps := make([]models.IndexProgress, 0, len(co.roots))
	for _, w := range co.roots {
		snaps = append(snaps, w.progress())
	}
	co.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].RootID < snaps[j].RootID })
	return snaps
}

// startRoot spawns the worker and watcher for one root. Persisted
// mid-cycle states collapse back to idle: a cycle interrupted by a crash
// is superseded by the startup scan. Errored roots keep waiting for an
// explicit rescan unless rescan-on-start is configured.
func (co *Coordinator) startRoot(ctx context.Context, root models.Root, trigger string) {
	state := normalizeStartupState(root.State)
	initialScan := true
	if state == models.RootStateError && !co.cfg.RescanOnStart {
		initialScan = false
	}

	w := newRootWorker(co, root, state, initialScan, trigger)

	co.mu.Lock()
	if _, exists := co.roots[root.ID]; exists {
		co.mu.Unlock()
		logging.Warn().Int64("root_id", root.ID).Msg("Root already has a worker")
		return
	}
	co.roots[root.ID] = w
	co.mu.Unlock()

	co.wg.Add(1)
	go func() {
		defer co.wg.Done()
		w.run(ctx)
	}()

	if co.cfg.WatchEnabled {
		wctx, wcancel := context.WithCancel(ctx)
		co.mu.Lock()
		co.watchers[root.ID] = wcancel
		co.mu.Unlock()

		co.wg.Add(1)
		go func() {
			defer co.wg.Done()
			if err := co.watch.Watch(wctx, root.ID, root.Path); err != nil {
				logging.Error().Err(err).Int64("root_id", root.ID).Str("path", root.Path).
					Msg("Watcher failed to establish")
			}
		}()
	}
}

// registerConfiguredRoots adds roots named in the configuration that the
// catalog does not know yet. Failures are logged per root so one bad path
// cannot block the rest.
func (co *Coordinator) registerConfiguredRoots(ctx context.Context) {
	for _, path := range co.cfg.Roots {
		abs, err := filepath.Abs(path)
		if err != nil {
			logging.Error().Err(err).Str("path", path).Msg("Cannot resolve configured root")
			continue
		}
		_, err = co.catalog.GetRootByPath(ctx, abs)
		if err == nil {
			continue
		}
		if !errors.Is(err, catalog.ErrNotFound) {
			logging.Error().Err(err).Str("path", abs).Msg("Cannot look up configured root")
			continue
		}
		if _, err := co.AddRoot(ctx, abs); err != nil {
			logging.Error().Err(err).Str("path", abs).Msg("Cannot register configured root")
		}
	}
}

// routeEvents fans bus file events out to per-root workers. Events for
// unknown roots are dropped; a saturated worker queue flags an
// interruption instead of blocking the router.
func (co *Coordinator) routeEvents(ctx context.Context, ch <-chan *events.FileEvent) {
	defer co.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			co.mu.RLock()
			w := co.roots[ev.RootID]
			co.mu.RUnlock()
			if w == nil {
				logging.Debug().Int64("root_id", ev.RootID).Str("path", ev.Path).
					Msg("Dropping event for unmanaged root")
				continue
			}
			w.enqueue(ev)
		}
	}
}

// onWatcherInterrupted is the watcher's callback for overflow or channel
// loss. The owning worker discards its buffered events and rescans.
func (co *Coordinator) onWatcherInterrupted(rootID int64, reason string) {
	co.mu.RLock()
	w := co.roots[rootID]
	co.mu.RUnlock()
	if w != nil {
		w.markInterrupted(reason)
	}
}

// recoverJournal settles entries left over from the previous session.
// Pending entries mark interrupted applies; since every root gets a full
// startup scan, the entries are logged and retired rather than replayed.
func (co *Coordinator) recoverJournal(ctx context.Context) {
	if co.journal == nil {
		return
	}

	if !co.journal.CleanShutdown() {
		logging.Warn().Msg("Previous session did not shut down cleanly; startup scans will reconcile")
	}

	pending, err := co.journal.Pending(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Journal recovery scan failed")
		return
	}
	for _, entry := range pending {
		var intent applyIntent
		if err := entry.UnmarshalPayload(&intent); err != nil {
			logging.Warn().Err(err).Str("entry_id", entry.ID).Msg("Unreadable journal entry")
		}
		logging.Warn().
			Str("entry_id", entry.ID).
			Int64("root_id", intent.RootID).
			Int("op_count", intent.OpCount).
			Int("attempts", entry.Attempts).
			Msg("Recovered interrupted apply batch, superseded by startup scan")
		if err := co.journal.MarkApplied(ctx, entry.ID); err != nil {
			logging.Error().Err(err).Str("entry_id", entry.ID).Msg("Failed to retire journal entry")
		}
	}

	stats := co.journal.Stats()
	metrics.UpdateJournalStats(stats.PendingCount, stats.DBSizeBytes)
	if len(pending) > 0 {
		logging.Info().Int("entries", len(pending)).Msg("Journal recovery completed")
	}
}

// normalizeStartupState maps persisted mid-cycle states back to idle.
func normalizeStartupState(s models.RootState) models.RootState {
	switch s {
	case models.RootStateScanning, models.RootStateDiffing, models.RootStateApplying:
		return models.RootStateIdle
	default:
		return s
	}
}
