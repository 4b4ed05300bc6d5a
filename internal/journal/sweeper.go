// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package journal

import (
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/tomtom215/photarium/internal/logging"
)

// Sweeper periodically removes applied entries and runs value log GC.
// Applied entries carry no recovery value; they are kept only between
// sweeps so Stats can report recent throughput.
type Sweeper struct {
	journal  *Journal
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool

	lastRun time.Time
}

// NewSweeper creates a sweep manager using the journal's configured
// GC interval.
func NewSweeper(j *Journal) *Sweeper {
	return &Sweeper{
		journal:  j,
		interval: j.cfg.GCInterval,
	}
}

// Start begins the background sweep loop.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()

	logging.Info().Dur("interval", s.interval).Msg("Journal sweeper started")
	return nil
}

// Stop gracefully stops the sweep loop.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	logging.Info().Msg("Journal sweeper stopped")
}

// IsRunning returns whether the sweeper is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep removes applied entries and reclaims value log space.
func (s *Sweeper) sweep() {
	start := time.Now()

	deleted, err := s.deleteAppliedEntries()
	if err != nil {
		logging.Error().Err(err).Msg("Journal sweep failed to delete applied entries")
	}

	if err := s.journal.RunGC(); err != nil {
		logging.Error().Err(err).Msg("Journal sweep GC failed")
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	if deleted > 0 {
		logging.Debug().
			Int64("deleted", deleted).
			Dur("duration", time.Since(start)).
			Msg("Journal sweep completed")
	}
}

// deleteAppliedEntries removes all entries in the applied prefix.
func (s *Sweeper) deleteAppliedEntries() (int64, error) {
	var keys [][]byte

	err := s.journal.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixApplied)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	var deleted int64
	for _, key := range keys {
		err := s.journal.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err != nil {
			logging.Warn().Err(err).Str("key", string(key)).Msg("Journal sweep failed to delete key")
			continue
		}
		deleted++
	}

	return deleted, nil
}
