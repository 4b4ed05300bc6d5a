// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/photarium/internal/catalog"
	"github.com/tomtom215/photarium/internal/events"
	"github.com/tomtom215/photarium/internal/logging"
	"github.com/tomtom215/photarium/internal/metrics"
	"github.com/tomtom215/photarium/internal/models"
)

// Index cycle triggers, used as metric labels.
const (
	triggerStartup = "startup"
	triggerWatcher = "watcher"
	triggerManual  = "manual"
)

// eventQueueSize bounds the per-root event queue. Overflow is not loss:
// the worker flags an interruption and the next cycle is a full rescan.
const eventQueueSize = 1024

type cmdKind int

const (
	cmdRescan cmdKind = iota
	cmdStop
)

type workerCommand struct {
	kind  cmdKind
	reply chan error
}

// rootWorker owns one root's indexing lifecycle. All state transitions,
// diffs, and catalog mutations for the root happen on its run goroutine,
// which is what serializes cycles per root while distinct roots proceed
// concurrently.
type rootWorker struct {
	co   *Coordinator
	root models.Root

	events  chan *events.FileEvent
	cmds    chan workerCommand
	kick    chan struct{}
	done    chan struct{}
	pending *coalescer

	interruptedFlag atomic.Bool
	interruptReason atomic.Value // string

	initialScan    bool
	initialTrigger string

	mu          sync.RWMutex
	state       models.RootState
	prog        models.IndexProgress
	cancelCycle context.CancelFunc
}

func newRootWorker(co *Coordinator, root models.Root, state models.RootState, initialScan bool, trigger string) *rootWorker {
	w := &rootWorker{
		co:             co,
		root:           root,
		events:         make(chan *events.FileEvent, eventQueueSize),
		cmds:           make(chan workerCommand),
		kick:           make(chan struct{}, 1),
		done:           make(chan struct{}),
		pending:        newCoalescer(),
		initialScan:    initialScan,
		initialTrigger: trigger,
		state:          state,
	}
	w.prog = models.IndexProgress{
		RootID:    root.ID,
		State:     state,
		UpdatedAt: co.clock.Now().UTC(),
	}
	return w
}

// run is the root's event loop. It exits when the coordinator context is
// cancelled or a stop command arrives.
func (w *rootWorker) run(ctx context.Context) {
	defer close(w.done)

	if w.initialScan {
		if err := w.fullCycle(ctx, w.initialTrigger); err != nil && ctx.Err() != nil {
			return
		}
	}

	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-w.events:
			before := w.pending.size()
			w.pending.add(ev)
			metrics.IndexPendingEvents.Add(float64(w.pending.size() - before))
			if timerC == nil {
				timerC = w.co.clock.After(w.co.debounce)
			}

		case <-timerC:
			timerC = nil
			w.runPendingWork(ctx)

		case <-w.kick:
			w.runPendingWork(ctx)

		case cmd := <-w.cmds:
			switch cmd.kind {
			case cmdRescan:
				cmd.reply <- w.fullCycle(ctx, triggerManual)
			case cmdStop:
				w.toStopped(ctx)
				cmd.reply <- nil
				return
			}
		}
	}
}

// runPendingWork drains the coalescer and runs the appropriate cycle. An
// interruption in the event stream invalidates the buffered batch, so the
// batch is discarded in favor of a full rescan.
func (w *rootWorker) runPendingWork(ctx context.Context) {
	batch := w.pending.drain()
	metrics.IndexPendingEvents.Add(-float64(len(batch)))

	if w.takeInterrupted() {
		reason, _ := w.interruptReason.Load().(string)
		logging.Warn().Int64("root_id", w.root.ID).Str("reason", reason).
			Int("discarded_events", len(batch)).
			Msg("Event stream interrupted, falling back to full rescan")
		if err := w.fullCycle(ctx, triggerWatcher); err != nil && ctx.Err() == nil {
			logging.Error().Err(err).Int64("root_id", w.root.ID).Msg("Rescan after interruption failed")
		}
		return
	}

	if len(batch) == 0 {
		return
	}
	if w.currentState() == models.RootStateError {
		// An errored root is only revived by an explicit rescan.
		logging.Debug().Int64("root_id", w.root.ID).Int("events", len(batch)).
			Msg("Dropping events for errored root")
		return
	}
	if err := w.incrementalCycle(ctx, batch); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Int64("root_id", w.root.ID).Msg("Incremental cycle failed")
	}
}

// fullCycle runs scan -> diff -> apply for the whole root.
func (w *rootWorker) fullCycle(ctx context.Context, trigger string) error {
	cctx := w.beginCycle(ctx)
	defer w.endCycle()

	if err := w.setState(cctx, models.RootStateScanning, ""); err != nil {
		return err
	}
	w.resetProgress()

	scanStart := w.co.clock.Now()
	scan, err := scanTree(cctx, w.root.ID, w.root.Path)
	metrics.RecordIndexPhase("scanning", time.Since(scanStart))
	if err != nil {
		return w.failCycle(cctx, trigger, err)
	}
	if scan.cyclesSkipped > 0 {
		logging.Warn().Int64("root_id", w.root.ID).Int("cycles", scan.cyclesSkipped).
			Msg("Scan skipped symlink cycles")
	}

	if err := w.setState(cctx, models.RootStateDiffing, ""); err != nil {
		return err
	}
	diffStart := w.co.clock.Now()
	existing, err := w.co.catalog.ListPhotosByRoot(cctx, w.root.ID)
	if err != nil {
		return w.failCycle(cctx, trigger, fmt.Errorf("list catalog rows: %w", err))
	}
	ops := diffFull(scan.candidates, existing)
	metrics.RecordIndexPhase("diffing", time.Since(diffStart))

	return w.finishCycle(cctx, trigger, ops, len(scan.candidates))
}

// incrementalCycle runs diff -> apply over one coalesced event batch.
func (w *rootWorker) incrementalCycle(ctx context.Context, batch []*events.FileEvent) error {
	cctx := w.beginCycle(ctx)
	defer w.endCycle()

	if err := w.setState(cctx, models.RootStateDiffing, ""); err != nil {
		return err
	}
	w.resetProgress()

	diffStart := w.co.clock.Now()
	ops, err := diffEvents(cctx, batch, w.lookupPhoto)
	metrics.RecordIndexPhase("diffing", time.Since(diffStart))
	if err != nil {
		return w.failCycle(cctx, triggerWatcher, err)
	}

	return w.finishCycle(cctx, triggerWatcher, ops, len(batch))
}

// finishCycle applies the diffed ops and settles the state machine.
func (w *rootWorker) finishCycle(ctx context.Context, trigger string, ops []op, scanned int) error {
	w.setProgressTotal(len(ops))

	if len(ops) == 0 {
		if err := w.setState(ctx, models.RootStateIdle, ""); err != nil {
			return err
		}
		metrics.RecordIndexCycle(trigger, "applied")
		logging.Debug().Int64("root_id", w.root.ID).Int("scanned", scanned).
			Str("trigger", trigger).Msg("Index cycle found no changes")
		return nil
	}

	if err := w.setState(ctx, models.RootStateApplying, ""); err != nil {
		return err
	}
	applyStart := w.co.clock.Now()
	applied, metaErrors, err := w.applyOps(ctx, ops)
	metrics.RecordIndexPhase("applying", time.Since(applyStart))
	if err != nil {
		return w.failCycle(ctx, trigger, err)
	}

	if err := w.setState(ctx, models.RootStateIdle, ""); err != nil {
		return err
	}
	metrics.RecordIndexCycle(trigger, "applied")

	logging.Info().
		Int64("root_id", w.root.ID).
		Str("trigger", trigger).
		Int("scanned", scanned).
		Int("ops", len(ops)).
		Int("applied", applied).
		Int("metadata_errors", metaErrors).
		Msg("Index cycle completed")
	return nil
}

// failCycle settles the state machine after a broken cycle. Cancellation
// leaves the persisted state alone (shutdown or root removal is already in
// progress); anything else is a root-level failure that parks the root in
// the error state until an explicit rescan.
func (w *rootWorker) failCycle(ctx context.Context, trigger string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		metrics.RecordIndexCycle(trigger, "stopped")
		return err
	}

	metrics.RecordIndexCycle(trigger, "error")
	logging.Error().Err(err).Int64("root_id", w.root.ID).Str("trigger", trigger).
		Msg("Index cycle failed")

	// The error state is reachable from every active state, so a failed
	// transition here is itself an invariant violation worth surfacing.
	if serr := w.setState(context.WithoutCancel(ctx), models.RootStateError, err.Error()); serr != nil {
		logging.Error().Err(serr).Int64("root_id", w.root.ID).Msg("Failed to park root in error state")
	}
	return err
}

// toStopped is the terminal transition for a removed root.
func (w *rootWorker) toStopped(ctx context.Context) {
	if err := w.setState(context.WithoutCancel(ctx), models.RootStateStopped, ""); err != nil {
		logging.Error().Err(err).Int64("root_id", w.root.ID).Msg("Failed to mark root stopped")
	}
}

// setState performs one state machine transition, persists it, and
// broadcasts the new progress snapshot. Same-state writes are no-ops.
func (w *rootWorker) setState(ctx context.Context, next models.RootState, lastErr string) error {
	w.mu.Lock()
	cur := w.state
	if cur == next {
		w.mu.Unlock()
		return nil
	}
	if !cur.CanTransition(next) {
		w.mu.Unlock()
		terr := &models.RootTransitionError{RootID: w.root.ID, From: cur, To: next}
		logging.Error().Err(terr).Msg("Illegal root state transition")
		return terr
	}
	w.state = next
	w.prog.State = next
	w.prog.UpdatedAt = w.co.clock.Now().UTC()
	w.mu.Unlock()

	if err := w.co.catalog.UpdateRootState(ctx, w.root.ID, next, lastErr); err != nil {
		logging.Error().Err(err).Int64("root_id", w.root.ID).Str("state", string(next)).
			Msg("Failed to persist root state")
	}
	w.publishProgress(ctx)
	return nil
}

func (w *rootWorker) currentState() models.RootState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// progress returns the live snapshot for this root.
func (w *rootWorker) progress() models.IndexProgress {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.prog
}

func (w *rootWorker) resetProgress() {
	w.mu.Lock()
	w.prog.Processed = 0
	w.prog.Total = 0
	w.prog.Errors = 0
	w.prog.UpdatedAt = w.co.clock.Now().UTC()
	w.mu.Unlock()
}

func (w *rootWorker) setProgressTotal(total int) {
	w.mu.Lock()
	w.prog.Total = total
	w.prog.UpdatedAt = w.co.clock.Now().UTC()
	w.mu.Unlock()
}

func (w *rootWorker) setProgressCounts(processed, errs int) {
	w.mu.Lock()
	w.prog.Processed = processed
	w.prog.Errors = errs
	w.prog.UpdatedAt = w.co.clock.Now().UTC()
	w.mu.Unlock()
}

// publishProgress pushes the current snapshot onto the bus for WebSocket
// and NATS consumers.
func (w *rootWorker) publishProgress(ctx context.Context) {
	snap := w.progress()
	ev := events.NewProgressEvent(w.root.ID, string(snap.State))
	ev.Processed = snap.Processed
	ev.Total = snap.Total
	ev.Errors = snap.Errors
	if err := w.co.bus.PublishProgress(ctx, ev); err != nil && !errors.Is(err, events.ErrBusClosed) {
		logging.Warn().Err(err).Int64("root_id", w.root.ID).Msg("Failed to publish progress")
	}
}

// lookupPhoto adapts the catalog's not-found error to the (nil, nil)
// convention diffEvents expects.
func (w *rootWorker) lookupPhoto(ctx context.Context, path string) (*models.PhotoRecord, error) {
	rec, err := w.co.catalog.GetPhotoByPath(ctx, w.root.ID, path)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// enqueue hands a routed event to the worker. A saturated queue is treated
// like a watcher overflow: flag the interruption and let the next cycle
// rescan instead of blocking the router.
func (w *rootWorker) enqueue(ev *events.FileEvent) {
	select {
	case w.events <- ev:
	default:
		w.markInterrupted("root event queue overflow")
	}
}

// markInterrupted records a gap in the event stream and nudges the worker.
// Safe to call from any goroutine.
func (w *rootWorker) markInterrupted(reason string) {
	w.interruptReason.Store(reason)
	w.interruptedFlag.Store(true)
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

func (w *rootWorker) takeInterrupted() bool {
	return w.interruptedFlag.Swap(false)
}

// beginCycle installs a cancel handle so root removal can abort the cycle
// at its next checkpoint.
func (w *rootWorker) beginCycle(ctx context.Context) context.Context {
	cctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancelCycle = cancel
	w.mu.Unlock()
	return cctx
}

func (w *rootWorker) endCycle() {
	w.mu.Lock()
	if w.cancelCycle != nil {
		w.cancelCycle()
		w.cancelCycle = nil
	}
	w.mu.Unlock()
}

// abortCycle cancels any in-flight cycle. The worker checks its context
// between records, never inside a single record's mutation.
func (w *rootWorker) abortCycle() {
	w.mu.Lock()
	cancel := w.cancelCycle
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// request sends a command and waits for its reply, failing fast when the
// worker has already exited.
func (w *rootWorker) request(ctx context.Context, kind cmdKind) error {
	reply := make(chan error, 1)
	select {
	case w.cmds <- workerCommand{kind: kind, reply: reply}:
	case <-w.done:
		return fmt.Errorf("root %d worker is stopped", w.root.ID)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-w.done:
		return fmt.Errorf("root %d worker is stopped", w.root.ID)
	case <-ctx.Done():
		return ctx.Err()
	}
}
