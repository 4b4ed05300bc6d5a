// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

//go:build !nats

package events

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
)

// MirrorConfig holds NATS mirror configuration.
// This is a stub for builds without NATS support.
type MirrorConfig struct {
	URL             string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int

	BreakerThreshold uint32
	BreakerCooldown  time.Duration
}

// DefaultMirrorConfig returns defaults for the mirror (stub).
func DefaultMirrorConfig(url, prefix string) MirrorConfig {
	return MirrorConfig{
		URL:           url,
		SubjectPrefix: prefix,
	}
}

// Mirror is a stub implementation for builds without NATS support.
type Mirror struct{}

// NewMirror returns a no-op mirror.
func NewMirror(_ MirrorConfig, _ *Bus, _ watermill.LoggerAdapter) (*Mirror, error) {
	return &Mirror{}, nil
}

// Run blocks until ctx is canceled (no-op).
func (m *Mirror) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// BreakerState returns the circuit breaker state (stub).
func (m *Mirror) BreakerState() string {
	return "disabled"
}

// Close shuts down the mirror (no-op).
func (m *Mirror) Close() error {
	return nil
}
