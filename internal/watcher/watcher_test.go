// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tomtom215/photarium/internal/events"
)

// startWatcher subscribes to the bus, starts watching dir, and gives the
// watcher time to register before the test mutates the filesystem.
func startWatcher(t *testing.T, dir string) (<-chan *events.FileEvent, func() []interruption) {
	t.Helper()

	bus := events.NewBus(nil)
	t.Cleanup(func() {
		if err := bus.Close(); err != nil {
			t.Errorf("bus close: %v", err)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	files, err := bus.SubscribeFiles(ctx)
	if err != nil {
		t.Fatalf("SubscribeFiles: %v", err)
	}

	var interruptions []interruption
	w := New(bus, func(rootID int64, reason string) {
		interruptions = append(interruptions, interruption{rootID, reason})
	})

	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, 1, dir)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Watch: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Watch did not stop after cancel")
		}
	})

	// Registration happens before the event loop; a short pause is enough
	// for the goroutine to get there.
	time.Sleep(300 * time.Millisecond)

	return files, func() []interruption { return interruptions }
}

type interruption struct {
	rootID int64
	reason string
}

func waitForEvent(t *testing.T, ch <-chan *events.FileEvent, path string, op events.FileOp) *events.FileEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-ch:
			if !ok {
				t.Fatal("event channel closed")
			}
			if event.Path == path && event.Op == op {
				return event
			}
			// Unrelated event (eg. a write rider on create); keep draining.
		case <-deadline:
			t.Fatalf("timed out waiting for %s %s", op, path)
		}
	}
}

func TestWatchPublishesCreate(t *testing.T) {
	dir := t.TempDir()
	files, _ := startWatcher(t, dir)

	path := filepath.Join(dir, "IMG_0001.jpg")
	if err := os.WriteFile(path, []byte("jpeg bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	event := waitForEvent(t, files, path, events.FileOpCreate)
	if event.RootID != 1 {
		t.Errorf("RootID = %d, want 1", event.RootID)
	}
	if event.EventID == "" || event.Timestamp.IsZero() {
		t.Error("event missing identity fields")
	}
}

func TestWatchPublishesWriteAndRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	files, _ := startWatcher(t, dir)

	if err := os.WriteFile(path, []byte("v2 longer"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	waitForEvent(t, files, path, events.FileOpWrite)

	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	waitForEvent(t, files, path, events.FileOpRemove)
}

func TestWatchNewDirectoryContentsEmitted(t *testing.T) {
	dir := t.TempDir()
	files, _ := startWatcher(t, dir)

	// Build the subtree elsewhere, then move it in, so its contents exist
	// before any watch covers them.
	staging := t.TempDir()
	sub := filepath.Join(staging, "album")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	inner := filepath.Join(sub, "photo.jpg")
	if err := os.WriteFile(inner, []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	target := filepath.Join(dir, "album")
	if err := os.Rename(sub, target); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	// The re-emit walk must surface the pre-existing file.
	waitForEvent(t, files, filepath.Join(target, "photo.jpg"), events.FileOpCreate)
}

func TestWatchRenameOldNameBecomesRemove(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "before.jpg")
	if err := os.WriteFile(oldPath, []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	files, _ := startWatcher(t, dir)

	newPath := filepath.Join(dir, "after.jpg")
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	// The pair the coordinator matches on: remove(old) + create(new).
	waitForEvent(t, files, oldPath, events.FileOpRemove)
	waitForEvent(t, files, newPath, events.FileOpCreate)
}

func TestWatchSkipsHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	files, _ := startWatcher(t, dir)

	hidden := filepath.Join(dir, ".DS_Store")
	if err := os.WriteFile(hidden, []byte("junk"), 0o644); err != nil {
		t.Fatalf("WriteFile hidden: %v", err)
	}
	visible := filepath.Join(dir, "real.jpg")
	if err := os.WriteFile(visible, []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile visible: %v", err)
	}

	// The first event through must be for the visible file; the hidden
	// file preceded it on disk, so an event for it would arrive first.
	select {
	case event := <-files:
		if event.Path != visible {
			t.Errorf("first event path = %q, want %q", event.Path, visible)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestOpString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op   fsnotify.Op
		want string
	}{
		{fsnotify.Create, "create"},
		{fsnotify.Write, "write"},
		{fsnotify.Remove, "remove"},
		{fsnotify.Rename, "rename"},
		{fsnotify.Chmod, "chmod"},
		{0, "unknown"},
	}
	for _, tt := range tests {
		if got := opString(tt.op); got != tt.want {
			t.Errorf("opString(%v) = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestWatchMissingRoot(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(nil)
	defer bus.Close()

	w := New(bus, nil)
	err := w.Watch(context.Background(), 1, filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("Watch on a missing root returned nil, want establishment error")
	}
}
