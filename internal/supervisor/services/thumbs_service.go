// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package services

import (
	"context"
	"fmt"
)

// StartStopper matches components with a plain Start/Stop pair whose
// background work is tied to their own internal context. Satisfied by
// *thumbs.Service.
type StartStopper interface {
	Start() error
	Stop() error
}

// ThumbsService wraps the thumbnail pipeline as a supervised service.
// Records left pending by a crash are re-requested on the next catalog
// mutation, so a restart loses no work permanently.
type ThumbsService struct {
	pipeline StartStopper
	name     string
}

// NewThumbsService creates the thumbnail pipeline wrapper.
func NewThumbsService(pipeline StartStopper) *ThumbsService {
	return &ThumbsService{pipeline: pipeline, name: "thumbnail-pipeline"}
}

// Serve implements suture.Service: start, block until cancellation, stop.
func (s *ThumbsService) Serve(ctx context.Context) error {
	if err := s.pipeline.Start(); err != nil {
		return fmt.Errorf("thumbnail pipeline start: %w", err)
	}

	<-ctx.Done()

	if err := s.pipeline.Stop(); err != nil {
		return fmt.Errorf("thumbnail pipeline stop: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture's logging.
func (s *ThumbsService) String() string {
	return s.name
}
