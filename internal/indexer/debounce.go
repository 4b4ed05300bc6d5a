// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package indexer

import (
	"time"

	"github.com/tomtom215/photarium/internal/events"
)

// Clock abstracts time for the debounce stage so tests can drive the
// coalescing window with a logical clock instead of real timers.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// systemClock is the production Clock backed by the runtime.
type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// coalescer buffers filesystem events for one root during the debounce
// window. Events for the same path collapse to the latest observation,
// keeping the position of the first; rename events split into a remove of
// the old path and a create of the new one so downstream diffing only ever
// sees three event kinds. Not safe for concurrent use; it is owned by a
// single root worker.
type coalescer struct {
	pending map[string]*events.FileEvent
	order   []string
}

func newCoalescer() *coalescer {
	return &coalescer{pending: make(map[string]*events.FileEvent)}
}

// add records one raw event. Watchers deliver at-least-once and unordered
// across paths, so duplicates are expected and harmless here.
func (c *coalescer) add(ev *events.FileEvent) {
	if ev == nil || ev.Path == "" {
		return
	}

	if ev.Op == events.FileOpRename && ev.OldPath != "" {
		c.put(&events.FileEvent{
			SchemaVersion: ev.SchemaVersion,
			EventID:       ev.EventID,
			RootID:        ev.RootID,
			Path:          ev.OldPath,
			Op:            events.FileOpRemove,
			Timestamp:     ev.Timestamp,
		})
		c.put(&events.FileEvent{
			SchemaVersion: ev.SchemaVersion,
			EventID:       ev.EventID,
			RootID:        ev.RootID,
			Path:          ev.Path,
			Op:            events.FileOpCreate,
			Timestamp:     ev.Timestamp,
		})
		return
	}

	c.put(ev)
}

func (c *coalescer) put(ev *events.FileEvent) {
	if _, seen := c.pending[ev.Path]; !seen {
		c.order = append(c.order, ev.Path)
	}
	c.pending[ev.Path] = ev
}

// drain returns the coalesced batch in first-arrival order and resets the
// buffer for the next window.
func (c *coalescer) drain() []*events.FileEvent {
	if len(c.order) == 0 {
		return nil
	}
	batch := make([]*events.FileEvent, 0, len(c.order))
	for _, path := range c.order {
		batch = append(batch, c.pending[path])
	}
	c.pending = make(map[string]*events.FileEvent)
	c.order = c.order[:0]
	return batch
}

func (c *coalescer) size() int {
	return len(c.order)
}
