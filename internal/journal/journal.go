// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

// Package journal provides a durable apply journal using BadgerDB.
//
// Before the coordinator applies a batch of catalog mutations it appends an
// intent entry here, and marks it applied once the batch commits. Entries
// that are still pending at startup identify roots whose apply phase was
// interrupted by a crash; those roots get a full rescan. A clean-shutdown
// marker distinguishes an orderly stop from a crash even when no apply was
// in flight, which covers watcher coverage gaps as well.
package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tomtom215/photarium/internal/config"
	"github.com/tomtom215/photarium/internal/logging"
)

// Entry is a single journal entry: an apply intent and its lifecycle state.
type Entry struct {
	// ID is the unique identifier for this journal entry.
	ID string `json:"id"`

	// Payload is the serialized intent (JSON). Use UnmarshalPayload to
	// deserialize into a specific type.
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is when the entry was appended.
	CreatedAt time.Time `json:"created_at"`

	// Attempts is the number of apply attempts recorded for this entry.
	Attempts int `json:"attempts"`

	// LastError is the error message from the last failed attempt.
	LastError string `json:"last_error,omitempty"`

	// Applied indicates the batch committed to the catalog.
	Applied bool `json:"applied"`

	// AppliedAt is when the entry was marked applied.
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

// UnmarshalPayload deserializes the payload into the given type.
func (e *Entry) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Stats contains journal counters for monitoring.
type Stats struct {
	// PendingCount is the number of unapplied entries.
	PendingCount int64

	// AppliedCount is the number of applied entries awaiting sweep.
	AppliedCount int64

	// TotalAppends is the total number of Append operations this session.
	TotalAppends int64

	// TotalApplied is the total number of MarkApplied operations this session.
	TotalApplied int64

	// DBSizeBytes is the estimated database size.
	DBSizeBytes int64
}

// Key prefixes for entry states, plus the shutdown marker key.
const (
	prefixPending = "pending:"
	prefixApplied = "applied:"

	keyCleanShutdown = "meta:clean_shutdown"
)

const defaultCloseTimeout = 30 * time.Second

// Journal is a BadgerDB-backed apply journal.
type Journal struct {
	db  *badger.DB
	cfg config.JournalConfig

	totalAppends atomic.Int64
	totalApplied atomic.Int64

	mu     sync.RWMutex
	closed bool

	// cleanStart records whether the previous session wrote its shutdown
	// marker. Captured once at Open and immutable afterwards.
	cleanStart bool
}

// Open opens (or creates) the journal at the configured path and consumes
// the previous session's clean-shutdown marker.
func Open(cfg *config.JournalConfig) (*Journal, error) {
	if cfg.Path == "" {
		return nil, errors.New("journal: path is required")
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.MemTableSize = 16 * 1024 * 1024
	opts.ValueLogFileSize = 64 * 1024 * 1024
	opts.NumCompactors = 2
	opts.Compression = options.Snappy
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	j := &Journal{
		db:  db,
		cfg: *cfg,
	}

	if err := j.consumeShutdownMarker(); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("read shutdown marker: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Bool("clean_start", j.cleanStart).
		Msg("Journal opened")
	return j, nil
}

// consumeShutdownMarker reads and deletes the clean-shutdown marker so a
// subsequent crash is not masked by a stale marker.
func (j *Journal) consumeShutdownMarker() error {
	return j.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keyCleanShutdown))
		if errors.Is(err, badger.ErrKeyNotFound) {
			j.cleanStart = false
			return nil
		}
		if err != nil {
			return err
		}
		j.cleanStart = true
		return txn.Delete([]byte(keyCleanShutdown))
	})
}

// CleanShutdown reports whether the previous session stopped via Close.
// A false return means the process crashed or was killed, and every root
// must be treated as having a watcher coverage gap.
func (j *Journal) CleanShutdown() bool {
	return j.cleanStart
}

// Append persists an apply intent before the catalog mutation batch runs.
// Returns an entry ID for MarkApplied once the batch commits.
func (j *Journal) Append(ctx context.Context, intent interface{}) (string, error) {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return "", ErrJournalClosed
	}
	j.mu.RUnlock()

	if intent == nil {
		return "", ErrNilIntent
	}

	payload, err := json.Marshal(intent)
	if err != nil {
		return "", fmt.Errorf("marshal intent: %w", err)
	}

	entryID := uuid.New().String()
	entry := &Entry{
		ID:        entryID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshal entry: %w", err)
	}

	key := []byte(prefixPending + entryID)
	if err := j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	}); err != nil {
		return "", fmt.Errorf("write to BadgerDB: %w", err)
	}

	j.totalAppends.Add(1)
	return entryID, nil
}

// MarkApplied moves an entry from pending to applied.
func (j *Journal) MarkApplied(ctx context.Context, entryID string) error {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return ErrJournalClosed
	}
	j.mu.RUnlock()

	if entryID == "" {
		return ErrEmptyEntryID
	}

	pendingKey := []byte(prefixPending + entryID)
	appliedKey := []byte(prefixApplied + entryID)

	err := j.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(pendingKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("get pending entry: %w", err)
		}

		var entry Entry
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		}); err != nil {
			return fmt.Errorf("unmarshal entry: %w", err)
		}

		now := time.Now().UTC()
		entry.Applied = true
		entry.AppliedAt = &now

		data, err := json.Marshal(&entry)
		if err != nil {
			return fmt.Errorf("marshal applied entry: %w", err)
		}

		if err := txn.Set(appliedKey, data); err != nil {
			return fmt.Errorf("set applied entry: %w", err)
		}
		if err := txn.Delete(pendingKey); err != nil {
			return fmt.Errorf("delete pending entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	j.totalApplied.Add(1)
	return nil
}

// MarkFailed records a failed apply attempt on a pending entry. The entry
// stays pending so a later startup still sees the interrupted batch.
func (j *Journal) MarkFailed(ctx context.Context, entryID, lastError string) error {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return ErrJournalClosed
	}
	j.mu.RUnlock()

	key := []byte(prefixPending + entryID)

	return j.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("get entry: %w", err)
		}

		var entry Entry
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		}); err != nil {
			return fmt.Errorf("unmarshal entry: %w", err)
		}

		entry.Attempts++
		entry.LastError = lastError

		data, err := json.Marshal(&entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		return txn.Set(key, data)
	})
}

// Pending returns all unapplied entries from a consistent snapshot.
// Used at startup to detect interrupted apply batches.
func (j *Journal) Pending(ctx context.Context) ([]*Entry, error) {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return nil, ErrJournalClosed
	}
	j.mu.RUnlock()

	var entries []*Entry

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixPending)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()

			var entry Entry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Journal failed to unmarshal entry")
				continue
			}

			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate pending entries: %w", err)
	}

	return entries, nil
}

// Stats returns current journal statistics.
func (j *Journal) Stats() Stats {
	j.mu.RLock()
	closed := j.closed
	j.mu.RUnlock()

	if closed {
		return Stats{}
	}

	var pendingCount, appliedCount int64

	if err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		pendingPrefix := []byte(prefixPending)
		for it.Seek(pendingPrefix); it.ValidForPrefix(pendingPrefix); it.Next() {
			pendingCount++
		}

		appliedPrefix := []byte(prefixApplied)
		for it.Seek(appliedPrefix); it.ValidForPrefix(appliedPrefix); it.Next() {
			appliedCount++
		}
		return nil
	}); err != nil {
		logging.Warn().Err(err).Msg("Journal Stats failed to count entries")
	}

	lsm, vlog := j.db.Size()

	return Stats{
		PendingCount: pendingCount,
		AppliedCount: appliedCount,
		TotalAppends: j.totalAppends.Load(),
		TotalApplied: j.totalApplied.Load(),
		DBSizeBytes:  lsm + vlog,
	}
}

// RunGC triggers BadgerDB value log garbage collection until no further
// rewrite is possible.
func (j *Journal) RunGC() error {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return ErrJournalClosed
	}
	j.mu.RUnlock()

	for {
		err := j.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close writes the clean-shutdown marker and shuts the database down.
// Returns an error rather than hanging if BadgerDB does not close in time.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	// The marker is only meaningful when it hits disk before the close.
	if err := j.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyCleanShutdown), []byte(time.Now().UTC().Format(time.RFC3339)))
	}); err != nil {
		logging.Warn().Err(err).Msg("Journal failed to write shutdown marker")
	}

	done := make(chan error, 1)
	go func() {
		done <- j.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Journal closed")
		return nil
	case <-time.After(defaultCloseTimeout):
		return fmt.Errorf("badgerdb close timeout after %v", defaultCloseTimeout)
	}
}

func closeQuietly(db *badger.DB) {
	_ = db.Close()
}

// Errors
var (
	// ErrJournalClosed is returned when the journal is closed.
	ErrJournalClosed = errors.New("journal is closed")

	// ErrNilIntent is returned when a nil intent is passed to Append.
	ErrNilIntent = errors.New("intent cannot be nil")

	// ErrEmptyEntryID is returned when an empty entry ID is provided.
	ErrEmptyEntryID = errors.New("entry ID cannot be empty")

	// ErrEntryNotFound is returned when an entry doesn't exist.
	ErrEntryNotFound = errors.New("entry not found")
)
