// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package models

import (
	"time"
)

// EventKind classifies a filesystem change notification.
type EventKind string

const (
	EventCreate EventKind = "create"
	EventModify EventKind = "modify"
	EventDelete EventKind = "delete"
	EventRename EventKind = "rename"
)

// FileEvent is one filesystem change notification as delivered by the
// watcher. Delivery is at-least-once: events may be duplicated, and ordering
// across distinct paths is not guaranteed. The coalescing stage downstream
// absorbs both properties.
type FileEvent struct {
	RootID int64     `json:"root_id"`
	Path   string    `json:"path"`
	Kind   EventKind `json:"kind"`

	// OldPath is set only for rename events where the source path is known.
	OldPath string `json:"old_path,omitempty"`

	At time.Time `json:"at"`
}
