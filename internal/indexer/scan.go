// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tomtom215/photarium/internal/extract"
	"github.com/tomtom215/photarium/internal/logging"
)

// ErrRootGone reports that a root's path no longer exists or cannot be
// opened. The owning root transitions to the error state and stays there
// until an explicit rescan.
var ErrRootGone = errors.New("indexer: root path missing or unreadable")

// candidate is one media file observed during a scan: enough to diff
// against the catalog without opening the file.
type candidate struct {
	path    string
	modTime time.Time
	size    int64
}

// scanResult carries the candidate set plus walk diagnostics.
type scanResult struct {
	candidates    []candidate
	cyclesSkipped int
	dirsVisited   int
}

// scanTree walks a root collecting media file candidates in lexical order.
// Directory symlinks are followed; a link that resolves into an already
// visited directory is counted and skipped, so cycles terminate. Hidden
// files and directories are ignored, matching the watcher. Unreadable
// subdirectories are logged and skipped; only the root itself failing to
// resolve is fatal.
func scanTree(ctx context.Context, rootID int64, rootPath string) (*scanResult, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRootGone, rootPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootGone, rootPath)
	}

	s := &walkState{
		rootID:  rootID,
		visited: make(map[string]bool),
		result:  &scanResult{},
	}
	if err := s.walkDir(ctx, rootPath); err != nil {
		return nil, err
	}
	return s.result, nil
}

type walkState struct {
	rootID  int64
	visited map[string]bool
	result  *scanResult
}

// walkDir recurses into dir. Entries come back from ReadDir sorted by
// name, so candidate order is deterministic for a fixed tree.
func (s *walkState) walkDir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if s.result.dirsVisited == 0 {
			return fmt.Errorf("%w: %s: %v", ErrRootGone, dir, err)
		}
		logging.Warn().Err(err).Int64("root_id", s.rootID).Str("dir", dir).
			Msg("Skipping unresolvable directory")
		return nil
	}
	if s.visited[resolved] {
		s.result.cyclesSkipped++
		logging.Warn().Int64("root_id", s.rootID).Str("dir", dir).Str("resolved", resolved).
			Msg("Symlink cycle detected, skipping")
		return nil
	}
	s.visited[resolved] = true
	s.result.dirsVisited++

	entries, err := os.ReadDir(dir)
	if err != nil {
		if s.result.dirsVisited == 1 {
			return fmt.Errorf("%w: %s: %v", ErrRootGone, dir, err)
		}
		logging.Warn().Err(err).Int64("root_id", s.rootID).Str("dir", dir).
			Msg("Skipping unreadable directory")
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(dir, name)

		switch {
		case entry.IsDir():
			if err := s.walkDir(ctx, full); err != nil {
				return err
			}
		case entry.Type()&os.ModeSymlink != 0:
			// A link to a directory is followed like a directory; a link
			// to a file is indexed like a file.
			target, err := os.Stat(full)
			if err != nil {
				logging.Debug().Err(err).Str("path", full).Msg("Skipping broken symlink")
				continue
			}
			if target.IsDir() {
				if err := s.walkDir(ctx, full); err != nil {
					return err
				}
				continue
			}
			s.addCandidate(full, target.ModTime(), target.Size())
		case entry.Type().IsRegular():
			info, err := entry.Info()
			if err != nil {
				logging.Debug().Err(err).Str("path", full).Msg("Skipping unstatable file")
				continue
			}
			s.addCandidate(full, info.ModTime(), info.Size())
		}
	}
	return nil
}

func (s *walkState) addCandidate(path string, modTime time.Time, size int64) {
	if _, ok := extract.MediaTypeForPath(path); !ok {
		return
	}
	s.result.candidates = append(s.result.candidates, candidate{
		path:    path,
		modTime: modTime.UTC(),
		size:    size,
	})
}
