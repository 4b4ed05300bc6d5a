// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package catalog

import (
	"errors"
	"io"
	"strings"

	"github.com/tomtom215/photarium/internal/logging"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("catalog: not found")

// ErrConflict is returned when a write loses a DuckDB transaction conflict.
// Callers retry or surface it as a write conflict to the API layer.
var ErrConflict = errors.New("catalog: write conflict")

// ErrCommitFailed marks a transaction that failed at commit after its apply
// callback already ran. The row change rolled back but the callback's side
// effects did not; callers owning those side effects must revert them.
var ErrCommitFailed = errors.New("catalog: commit failed")

// isTransactionConflict checks if an error is a DuckDB transaction conflict.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Transaction conflict") ||
		strings.Contains(errStr, "Conflict on update") ||
		strings.Contains(errStr, "cannot update a table that has been altered")
}

// mapWriteError normalizes driver errors on the write path.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if isTransactionConflict(err) {
		return ErrConflict
	}
	return err
}

// closeWithLog closes a resource and logs any error. Cleanup errors are
// acknowledged but never fail the surrounding operation.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly ignores any error. For
// cleanup in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
