// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// MockService is a test helper implementing suture.Service with
// controllable failure behavior.
type MockService struct {
	name       string
	startCount atomic.Int32
	stopCount  atomic.Int32
	failCount  atomic.Int32
	maxFails   int32
	err        error
	mu         sync.Mutex
}

// NewMockService creates a mock service for supervisor tests.
func NewMockService(name string) *MockService {
	return &MockService{name: name}
}

// Serve implements suture.Service. With maxFails set it fails that many
// times before settling; with err set it returns it immediately;
// otherwise it blocks until the context is canceled.
func (m *MockService) Serve(ctx context.Context) error {
	m.startCount.Add(1)
	defer m.stopCount.Add(1)

	m.mu.Lock()
	err := m.err
	maxFails := m.maxFails
	m.mu.Unlock()

	if maxFails > 0 {
		current := m.failCount.Add(1)
		if current <= maxFails {
			return errors.New("simulated failure")
		}
	}

	if err != nil {
		return err
	}

	<-ctx.Done()
	return ctx.Err()
}

// String implements fmt.Stringer for suture's logging.
func (m *MockService) String() string { return m.name }

// SetError makes Serve return err on its next invocation.
func (m *MockService) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// SetMaxFails makes Serve fail n times before running normally.
func (m *MockService) SetMaxFails(n int32) {
	m.mu.Lock()
	m.maxFails = n
	m.mu.Unlock()
}

// StartCount reports how many times Serve has been entered.
func (m *MockService) StartCount() int32 { return m.startCount.Load() }

// StopCount reports how many times Serve has returned.
func (m *MockService) StopCount() int32 { return m.stopCount.Load() }
