// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

//go:build !nats

package events

import (
	"context"
	"errors"
)

// NATSSupported reports whether this binary was built with NATS
// mirroring compiled in.
const NATSSupported = false

// ServerConfig holds embedded NATS server settings.
// This is a stub for builds without NATS support.
type ServerConfig struct {
	Host     string
	Port     int
	StoreDir string

	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns defaults for the embedded server (stub).
func DefaultServerConfig(storeDir string) ServerConfig {
	return ServerConfig{Host: "127.0.0.1", Port: 4222, StoreDir: storeDir}
}

// EmbeddedServer is a stub for builds without NATS support.
type EmbeddedServer struct{}

// NewEmbeddedServer fails: embedded NATS requires the nats build tag.
func NewEmbeddedServer(ServerConfig) (*EmbeddedServer, error) {
	return nil, errors.New("embedded NATS server requires build with -tags nats")
}

// ClientURL returns the connection URL (stub).
func (s *EmbeddedServer) ClientURL() string { return "" }

// Shutdown stops the server (no-op).
func (s *EmbeddedServer) Shutdown(context.Context) error { return nil }
