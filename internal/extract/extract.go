// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

// Package extract reads structured metadata from media files: capture
// timestamp, GPS coordinate, media type, and a content hash used for
// dedupe and rename detection.
//
// Extraction failures are typed (*Error) and always scoped to one file; the
// coordinator records them on the affected record and carries on, so a
// corrupt file can never halt a scan.
package extract

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/tomtom215/photarium/internal/models"
)

// hashPrefixBytes bounds how much content feeds the hash. The file size is
// mixed in as well, so two files agree only when both the prefix and the
// length match. Keeps hashing cheap on multi-gigabyte video.
const hashPrefixBytes = 256 * 1024

// Error is a single-file extraction failure: unreadable, corrupt, or
// unsupported. Recorded on the PhotoRecord, never fatal to a scan.
type Error struct {
	Path   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Path, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Metadata is the result of extracting one media file.
type Metadata struct {
	MediaType   models.MediaType
	TakenAt     *time.Time
	Coordinate  *models.Coordinate
	ContentHash string
	SizeBytes   int64
	ModTime     time.Time
}

// photoExtensions and videoExtensions classify files by suffix. Anything
// else is not media and extraction fails with an unsupported error.
var photoExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".heic": true, ".heif": true, ".tif": true,
	".tiff": true, ".bmp": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".m4v": true, ".avi": true,
	".mkv": true, ".webm": true, ".mpg": true, ".mpeg": true,
}

// MediaTypeForPath classifies a path by extension, reporting false for
// non-media files so scans can skip them without opening.
func MediaTypeForPath(path string) (models.MediaType, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if photoExtensions[ext] {
		return models.MediaTypePhoto, true
	}
	if videoExtensions[ext] {
		return models.MediaTypeVideo, true
	}
	return "", false
}

// Extractor reads media metadata from files. Safe for concurrent use; the
// worker pool above it bounds concurrent open file handles.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// ExtractFile reads metadata for one file. The returned error is always a
// *Error for per-file failures; ctx cancellation surfaces unwrapped so the
// caller can tell a checkpoint stop from a bad file.
func (x *Extractor) ExtractFile(ctx context.Context, path string) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mediaType, ok := MediaTypeForPath(path)
	if !ok {
		return nil, &Error{Path: path, Reason: "unsupported file type"}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{Path: path, Reason: "stat failed", Err: err}
	}
	if info.IsDir() {
		return nil, &Error{Path: path, Reason: "path is a directory"}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Path: path, Reason: "open failed", Err: err}
	}
	defer f.Close()

	hash, err := hashContent(f, info.Size())
	if err != nil {
		return nil, &Error{Path: path, Reason: "hash failed", Err: err}
	}

	meta := &Metadata{
		MediaType:   mediaType,
		ContentHash: hash,
		SizeBytes:   info.Size(),
		ModTime:     info.ModTime().UTC(),
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, &Error{Path: path, Reason: "seek failed", Err: err}
	}

	// Timestamp and GPS parsing is best effort per container: a photo
	// without EXIF is a valid photo, but a structurally corrupt container
	// is an extraction failure.
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		exif, err := parseJPEG(f)
		if err != nil {
			return nil, &Error{Path: path, Reason: "corrupt JPEG", Err: err}
		}
		if exif != nil {
			meta.TakenAt = exif.TakenAt
			meta.Coordinate = exif.Coordinate
		}
	case ".tif", ".tiff":
		exif, err := parseTIFF(f, info.Size())
		if err != nil {
			return nil, &Error{Path: path, Reason: "corrupt TIFF", Err: err}
		}
		if exif != nil {
			meta.TakenAt = exif.TakenAt
			meta.Coordinate = exif.Coordinate
		}
	case ".mp4", ".mov", ".m4v":
		mp4, err := parseMP4(f, info.Size())
		if err != nil {
			return nil, &Error{Path: path, Reason: "corrupt MP4", Err: err}
		}
		if mp4 != nil {
			meta.TakenAt = mp4.TakenAt
			meta.Coordinate = mp4.Coordinate
		}
	}

	// A parsed coordinate outside the WGS84 envelope is treated as absent
	// rather than indexed; cameras write garbage GPS more often than none.
	if meta.Coordinate != nil && !meta.Coordinate.Valid() {
		meta.Coordinate = nil
	}

	return meta, nil
}

// hashContent computes the content hash: xxhash64 over the big-endian file
// size followed by up to hashPrefixBytes of leading content.
func hashContent(r io.Reader, size int64) (string, error) {
	h := xxhash.New()

	var sizeBuf [8]byte
	binary.BigEndian.PutUint64(sizeBuf[:], uint64(size))
	if _, err := h.Write(sizeBuf[:]); err != nil {
		return "", err
	}

	if _, err := io.CopyN(h, r, hashPrefixBytes); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	return fmt.Sprintf("%016x", h.Sum64()), nil
}
