// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package services

import (
	"context"
)

// Runner matches components whose whole lifecycle is one blocking
// Run(ctx) call. Satisfied by *websocket.Hub and *events.Mirror.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerService supervises a Runner, delegating Serve to Run.
type RunnerService struct {
	runner Runner
	name   string
}

// NewWebSocketHubService wraps the WebSocket hub as a supervised service.
func NewWebSocketHubService(hub Runner) *RunnerService {
	return &RunnerService{runner: hub, name: "websocket-hub"}
}

// NewMirrorService wraps the NATS event mirror as a supervised service.
func NewMirrorService(mirror Runner) *RunnerService {
	return &RunnerService{runner: mirror, name: "nats-mirror"}
}

// Serve implements suture.Service.
func (r *RunnerService) Serve(ctx context.Context) error {
	return r.runner.Run(ctx)
}

// String implements fmt.Stringer for suture's logging.
func (r *RunnerService) String() string {
	return r.name
}
