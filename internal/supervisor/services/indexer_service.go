// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package services

import (
	"context"
	"fmt"
)

// Indexer matches the index coordinator's lifecycle: Start launches the
// per-root workers and returns, Stop drains them.
type Indexer interface {
	Start(ctx context.Context) error
	Stop() error
}

// IndexerService wraps the index coordinator as a supervised service.
// A restart after a crash re-runs the coordinator's startup recovery
// (journal inspection plus initial scans), so supervision alone brings
// the index back to a consistent state.
type IndexerService struct {
	indexer Indexer
	name    string
}

// NewIndexerService creates the coordinator wrapper.
func NewIndexerService(indexer Indexer) *IndexerService {
	return &IndexerService{indexer: indexer, name: "index-coordinator"}
}

// Serve implements suture.Service: start, block until cancellation, stop.
func (s *IndexerService) Serve(ctx context.Context) error {
	if err := s.indexer.Start(ctx); err != nil {
		return fmt.Errorf("index coordinator start: %w", err)
	}

	<-ctx.Done()

	if err := s.indexer.Stop(); err != nil {
		return fmt.Errorf("index coordinator stop: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture's logging.
func (s *IndexerService) String() string {
	return s.name
}
