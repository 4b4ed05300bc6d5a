// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package models

import (
	"fmt"
	"time"
)

// RootState is the indexing lifecycle state of a managed root.
//
// Normal cycle: idle -> scanning -> diffing -> applying -> idle.
// error is reachable from any step on unrecoverable root-level failure
// (root path missing or unreadable) and is left only by an explicit rescan.
// stopped is terminal and entered when the root is removed.
type RootState string

const (
	RootStateIdle     RootState = "idle"
	RootStateScanning RootState = "scanning"
	RootStateDiffing  RootState = "diffing"
	RootStateApplying RootState = "applying"
	RootStateError    RootState = "error"
	RootStateStopped  RootState = "stopped"
)

// validRootTransitions enumerates the allowed state machine edges.
var validRootTransitions = map[RootState][]RootState{
	RootStateIdle:     {RootStateScanning, RootStateDiffing, RootStateError, RootStateStopped},
	RootStateScanning: {RootStateDiffing, RootStateError, RootStateStopped},
	RootStateDiffing:  {RootStateApplying, RootStateIdle, RootStateError, RootStateStopped},
	RootStateApplying: {RootStateIdle, RootStateError, RootStateStopped},
	RootStateError:    {RootStateScanning, RootStateStopped},
	RootStateStopped:  {},
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s RootState) CanTransition(next RootState) bool {
	for _, allowed := range validRootTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RootTransitionError reports an attempted illegal state machine transition.
type RootTransitionError struct {
	RootID int64
	From   RootState
	To     RootState
}

func (e *RootTransitionError) Error() string {
	return fmt.Sprintf("root %d: illegal transition %s -> %s", e.RootID, e.From, e.To)
}

// Root is a filesystem subtree registered for indexing. A root owns zero or
// more PhotoRecords and carries its own indexing state; cycles for distinct
// roots run concurrently while cycles for one root are serialized.
type Root struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	State     RootState `json:"state"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IndexProgress is the progress snapshot for one root, as returned by
// the coordinator and broadcast over the WebSocket hub.
type IndexProgress struct {
	RootID    int64     `json:"root_id"`
	State     RootState `json:"state"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
	Errors    int       `json:"errors"`
	UpdatedAt time.Time `json:"updated_at"`
}
