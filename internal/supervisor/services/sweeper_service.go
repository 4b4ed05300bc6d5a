// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package services

import (
	"context"
	"fmt"
)

// Sweeper matches the journal sweeper's lifecycle. Start takes the serve
// context so the sweep loop stops with the supervisor even if Stop is
// never reached.
type Sweeper interface {
	Start(ctx context.Context) error
	Stop()
}

// SweeperService wraps the journal sweeper as a supervised service in
// the data layer. Sweeping is pure maintenance - a restart just delays
// space reclamation, never correctness.
type SweeperService struct {
	sweeper Sweeper
	name    string
}

// NewSweeperService creates the journal sweeper wrapper.
func NewSweeperService(sweeper Sweeper) *SweeperService {
	return &SweeperService{sweeper: sweeper, name: "journal-sweeper"}
}

// Serve implements suture.Service: start, block until cancellation, stop.
func (s *SweeperService) Serve(ctx context.Context) error {
	if err := s.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("journal sweeper start: %w", err)
	}

	<-ctx.Done()

	s.sweeper.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for suture's logging.
func (s *SweeperService) String() string {
	return s.name
}
