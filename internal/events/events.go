// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

// Package events defines the event types that flow between the watcher,
// the index coordinator, and the UI-facing consumers, plus the in-process
// bus that carries them. When NATS is enabled the bus is mirrored to
// JetStream subjects for external consumers.
package events

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current event schema version.
// Increment this when making breaking changes to event payloads.
const SchemaVersion = 1

// Topics carried by the bus.
const (
	// TopicFiles carries filesystem change events from the watcher.
	TopicFiles = "library.files"

	// TopicProgress carries indexing progress snapshots per root.
	TopicProgress = "index.progress"

	// TopicThumbs carries thumbnail lifecycle transitions.
	TopicThumbs = "thumbs.status"
)

// FileOp identifies the kind of filesystem change observed.
type FileOp string

const (
	// FileOpCreate indicates a new file appeared.
	FileOpCreate FileOp = "create"
	// FileOpWrite indicates an existing file's content changed.
	FileOpWrite FileOp = "write"
	// FileOpRemove indicates a file disappeared.
	FileOpRemove FileOp = "remove"
	// FileOpRename indicates a file moved and the watcher saw both names.
	FileOpRename FileOp = "rename"
)

// FileEvent is one observed filesystem change under a managed root.
//
// Events are raw observations: the coordinator owns coalescing, rename
// pairing, and media-type filtering. OldPath is only set for renames where
// the platform reported both names in one notification.
type FileEvent struct {
	SchemaVersion int       `json:"schema_version,omitempty"`
	EventID       string    `json:"event_id"`
	RootID        int64     `json:"root_id"`
	Path          string    `json:"path"`
	OldPath       string    `json:"old_path,omitempty"`
	Op            FileOp    `json:"op"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewFileEvent creates a file event with a unique ID and timestamp.
func NewFileEvent(rootID int64, path string, op FileOp) *FileEvent {
	return &FileEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		RootID:        rootID,
		Path:          path,
		Op:            op,
		Timestamp:     time.Now().UTC(),
	}
}

// Validate checks required fields and returns an error if validation fails.
func (e *FileEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.RootID == 0 {
		return &ValidationError{Field: "root_id", Message: "required"}
	}
	if e.Path == "" {
		return &ValidationError{Field: "path", Message: "required"}
	}
	switch e.Op {
	case FileOpCreate, FileOpWrite, FileOpRemove, FileOpRename:
	default:
		return &ValidationError{Field: "op", Message: "unknown operation"}
	}
	return nil
}

// Topic returns the bus topic for this event.
func (e *FileEvent) Topic() string {
	return TopicFiles
}

// ProgressEvent is a point-in-time snapshot of one root's indexing cycle.
// Published on state transitions and periodically during long phases.
type ProgressEvent struct {
	SchemaVersion int       `json:"schema_version,omitempty"`
	EventID       string    `json:"event_id"`
	RootID        int64     `json:"root_id"`
	State         string    `json:"state"`
	Processed     int       `json:"processed"`
	Total         int       `json:"total"`
	Errors        int       `json:"errors"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewProgressEvent creates a progress event with a unique ID and timestamp.
func NewProgressEvent(rootID int64, state string) *ProgressEvent {
	return &ProgressEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		RootID:        rootID,
		State:         state,
		Timestamp:     time.Now().UTC(),
	}
}

// Validate checks required fields and returns an error if validation fails.
func (e *ProgressEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.RootID == 0 {
		return &ValidationError{Field: "root_id", Message: "required"}
	}
	if e.State == "" {
		return &ValidationError{Field: "state", Message: "required"}
	}
	return nil
}

// Topic returns the bus topic for this event.
func (e *ProgressEvent) Topic() string {
	return TopicProgress
}

// ThumbEvent reports a thumbnail status transition for one photo record.
type ThumbEvent struct {
	SchemaVersion int       `json:"schema_version,omitempty"`
	EventID       string    `json:"event_id"`
	PhotoID       int64     `json:"photo_id"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewThumbEvent creates a thumbnail event with a unique ID and timestamp.
func NewThumbEvent(photoID int64, status string) *ThumbEvent {
	return &ThumbEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		PhotoID:       photoID,
		Status:        status,
		Timestamp:     time.Now().UTC(),
	}
}

// Validate checks required fields and returns an error if validation fails.
func (e *ThumbEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.PhotoID == 0 {
		return &ValidationError{Field: "photo_id", Message: "required"}
	}
	if e.Status == "" {
		return &ValidationError{Field: "status", Message: "required"}
	}
	return nil
}

// Topic returns the bus topic for this event.
func (e *ThumbEvent) Topic() string {
	return TopicThumbs
}

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
