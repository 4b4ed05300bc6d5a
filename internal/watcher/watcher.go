// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

// Package watcher observes managed library roots with fsnotify and publishes
// raw file events to the bus. It performs no coalescing or media filtering;
// the index coordinator owns both. Watch registrations are recursive, and a
// directory created under a watched tree is registered before its existing
// contents are re-emitted as create events, so files that land between the
// mkdir and the registration are still observed.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/tomtom215/photarium/internal/events"
	"github.com/tomtom215/photarium/internal/logging"
	"github.com/tomtom215/photarium/internal/metrics"
)

// InterruptionFunc is called when the watcher can no longer guarantee that
// every change under a root was observed. The coordinator responds with a
// full rescan of that root.
type InterruptionFunc func(rootID int64, reason string)

// Watcher publishes filesystem observations for managed roots.
type Watcher struct {
	bus           *events.Bus
	onInterrupted InterruptionFunc
}

// New creates a watcher that publishes to bus. onInterrupted may be nil,
// in which case coverage gaps are only logged.
func New(bus *events.Bus, onInterrupted InterruptionFunc) *Watcher {
	return &Watcher{
		bus:           bus,
		onInterrupted: onInterrupted,
	}
}

// Watch observes one root until ctx is canceled. It returns an error only
// when the watch could not be established; runtime errors are reported via
// the interruption callback and the event loop keeps running where possible.
func (w *Watcher) Watch(ctx context.Context, rootID int64, rootPath string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		if err := fsw.Close(); err != nil {
			logging.Error().Err(err).Int64("root_id", rootID).Msg("failed to close file watcher")
		}
	}()

	watched, err := w.addTree(ctx, fsw, rootID, rootPath, false)
	if err != nil {
		return fmt.Errorf("register %s: %w", rootPath, err)
	}
	metrics.WatchedDirectories.Add(float64(watched))
	defer metrics.WatchedDirectories.Sub(float64(watched))

	logging.Info().
		Int64("root_id", rootID).
		Str("path", rootPath).
		Int("directories", watched).
		Msg("Watcher started")

	w.run(ctx, fsw, rootID)
	return nil
}

// run is the event loop for one root.
func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, rootID int64) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				w.interrupted(rootID, "event channel closed")
				return
			}
			w.handleEvent(ctx, fsw, rootID, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				w.interrupted(rootID, "error channel closed")
				return
			}
			metrics.WatcherErrors.Inc()
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// The kernel dropped events; coverage has a hole.
				w.interrupted(rootID, "event queue overflow")
				continue
			}
			logging.Error().Err(err).Int64("root_id", rootID).Msg("Watcher error")
		}
	}
}

// handleEvent translates one fsnotify event into bus traffic.
func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, rootID int64, event fsnotify.Event) {
	// Skip hidden files and directories
	if strings.Contains(event.Name, "/.") {
		return
	}

	eventType := opString(event.Op)
	metrics.RecordWatcherEvent(eventType)

	switch {
	case event.Op.Has(fsnotify.Create):
		info, err := os.Lstat(event.Name)
		if err != nil {
			// Already gone again; emit the create and let the
			// coordinator's stat during scan sort it out.
			w.publish(ctx, rootID, event.Name, events.FileOpCreate)
			return
		}
		if info.IsDir() {
			added, err := w.addTree(ctx, fsw, rootID, event.Name, true)
			if err != nil {
				logging.Warn().Err(err).Str("path", event.Name).Msg("failed to register new directory")
				w.interrupted(rootID, "new directory registration failed")
				return
			}
			metrics.WatchedDirectories.Add(float64(added))
			return
		}
		w.publish(ctx, rootID, event.Name, events.FileOpCreate)

	case event.Op.Has(fsnotify.Write):
		w.publish(ctx, rootID, event.Name, events.FileOpWrite)

	case event.Op.Has(fsnotify.Remove):
		w.publish(ctx, rootID, event.Name, events.FileOpRemove)

	case event.Op.Has(fsnotify.Rename):
		// Rename notifications carry only the old name; the new name
		// arrives as a separate create. Publish a remove and let the
		// coordinator pair it with the create by content hash.
		w.publish(ctx, rootID, event.Name, events.FileOpRemove)
	}
}

// addTree registers path and every directory below it. When emitFiles is
// set, regular files found during the walk are re-emitted as create events
// to close the gap between a directory appearing and its watch existing.
func (w *Watcher) addTree(ctx context.Context, fsw *fsnotify.Watcher, rootID int64, path string, emitFiles bool) (int, error) {
	watched := 0
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == path {
				// The tree itself is unreadable; that is fatal.
				return err
			}
			// A subtree that vanished mid-walk is not.
			logging.Warn().Err(err).Str("path", p).Msg("watcher walk error")
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != path {
				return filepath.SkipDir
			}
			if addErr := fsw.Add(p); addErr != nil {
				logging.Warn().Err(addErr).Str("path", p).Msg("failed to add path to watcher")
				metrics.WatcherErrors.Inc()
				return nil
			}
			watched++
			return nil
		}
		if emitFiles && d.Type().IsRegular() && !strings.HasPrefix(d.Name(), ".") {
			w.publish(ctx, rootID, p, events.FileOpCreate)
		}
		return nil
	})
	return watched, err
}

func (w *Watcher) publish(ctx context.Context, rootID int64, path string, op events.FileOp) {
	if err := w.bus.PublishFileEvent(ctx, events.NewFileEvent(rootID, path, op)); err != nil {
		logging.Error().Err(err).Str("path", path).Msg("failed to publish file event")
	}
}

func (w *Watcher) interrupted(rootID int64, reason string) {
	metrics.RecordWatcherInterruption()
	logging.Warn().Int64("root_id", rootID).Str("reason", reason).Msg("Watcher coverage interrupted")
	if w.onInterrupted != nil {
		w.onInterrupted(rootID, reason)
	}
}

// opString returns the metric label for an fsnotify operation.
func opString(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Chmod):
		return "chmod"
	default:
		return "unknown"
	}
}
