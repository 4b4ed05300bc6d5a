// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package extract

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/photarium/internal/models"
)

// mp4Epoch converts QuickTime/MP4 timestamps (seconds since 1904-01-01 UTC)
// to Unix time.
const mp4Epoch = 2082844800

// parseMP4 walks the ISO BMFF box tree of an MP4 or QuickTime file and
// extracts the movie creation time (moov/mvhd) and the udta location atom
// (moov/udta/©xyz, ISO 6709). Files without a moov box return (nil, nil).
func parseMP4(r io.ReaderAt, size int64) (*exifData, error) {
	var out exifData

	err := walkBoxes(r, 0, size, func(typ string, start, end int64) error {
		if typ != "moov" {
			return nil
		}
		return walkBoxes(r, start, end, func(typ string, start, end int64) error {
			switch typ {
			case "mvhd":
				when, err := parseMvhd(r, start, end)
				if err != nil {
					return err
				}
				out.TakenAt = when
			case "udta":
				return walkBoxes(r, start, end, func(typ string, start, end int64) error {
					if typ == "\xa9xyz" {
						coord, err := parseXYZ(r, start, end)
						if err != nil {
							return err
						}
						out.Coordinate = coord
					}
					return nil
				})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if out.TakenAt == nil && out.Coordinate == nil {
		return nil, nil
	}
	return &out, nil
}

// walkBoxes visits the boxes in [start, end) at one nesting level, passing
// each box's payload bounds to visit.
func walkBoxes(r io.ReaderAt, start, end int64, visit func(typ string, start, end int64) error) error {
	off := start
	for off+8 <= end {
		var hdr [8]byte
		if _, err := r.ReadAt(hdr[:], off); err != nil {
			return fmt.Errorf("read box header at %d: %w", off, err)
		}

		size := int64(binary.BigEndian.Uint32(hdr[:4]))
		typ := string(hdr[4:8])
		headerLen := int64(8)

		switch size {
		case 0:
			// Box extends to end of file.
			size = end - off
		case 1:
			var ext [8]byte
			if _, err := r.ReadAt(ext[:], off+8); err != nil {
				return fmt.Errorf("read box largesize at %d: %w", off, err)
			}
			v := binary.BigEndian.Uint64(ext[:])
			if v > uint64(end-off) {
				return fmt.Errorf("box %q largesize %d exceeds remaining %d", typ, v, end-off)
			}
			size = int64(v)
			headerLen = 16
		}

		if size < headerLen || off+size > end {
			return fmt.Errorf("box %q at %d has size %d outside [%d, %d)", typ, off, size, start, end)
		}

		if err := visit(typ, off+headerLen, off+size); err != nil {
			return err
		}
		off += size
	}
	return nil
}

// parseMvhd reads the creation time from a movie header box. Version 0
// stores 32-bit timestamps, version 1 stores 64-bit. A zero creation time
// means the writer did not record one.
func parseMvhd(r io.ReaderAt, start, end int64) (*time.Time, error) {
	var hdr [4]byte
	if end-start < int64(len(hdr)) {
		return nil, fmt.Errorf("mvhd truncated at %d bytes", end-start)
	}
	if _, err := r.ReadAt(hdr[:], start); err != nil {
		return nil, fmt.Errorf("read mvhd version: %w", err)
	}

	var creation uint64
	switch hdr[0] {
	case 0:
		var buf [4]byte
		if end-start < 4+4 {
			return nil, fmt.Errorf("mvhd v0 truncated at %d bytes", end-start)
		}
		if _, err := r.ReadAt(buf[:], start+4); err != nil {
			return nil, fmt.Errorf("read mvhd creation time: %w", err)
		}
		creation = uint64(binary.BigEndian.Uint32(buf[:]))
	case 1:
		var buf [8]byte
		if end-start < 4+8 {
			return nil, fmt.Errorf("mvhd v1 truncated at %d bytes", end-start)
		}
		if _, err := r.ReadAt(buf[:], start+4); err != nil {
			return nil, fmt.Errorf("read mvhd creation time: %w", err)
		}
		creation = binary.BigEndian.Uint64(buf[:])
	default:
		return nil, fmt.Errorf("unsupported mvhd version %d", hdr[0])
	}

	if creation < mp4Epoch {
		return nil, nil
	}
	when := time.Unix(int64(creation-mp4Epoch), 0).UTC()
	return &when, nil
}

// parseXYZ reads a udta ©xyz location atom: a 16-bit length, a 16-bit
// language code, then an ISO 6709 string such as "+48.8577+002.2950/".
func parseXYZ(r io.ReaderAt, start, end int64) (*models.Coordinate, error) {
	if end-start < 4 {
		return nil, fmt.Errorf("xyz atom truncated at %d bytes", end-start)
	}
	var hdr [4]byte
	if _, err := r.ReadAt(hdr[:], start); err != nil {
		return nil, fmt.Errorf("read xyz header: %w", err)
	}
	strLen := int64(binary.BigEndian.Uint16(hdr[:2]))
	if start+4+strLen > end {
		return nil, fmt.Errorf("xyz string length %d exceeds atom payload %d", strLen, end-start-4)
	}
	buf := make([]byte, strLen)
	if _, err := r.ReadAt(buf, start+4); err != nil {
		return nil, fmt.Errorf("read xyz string: %w", err)
	}
	coord, ok := parseISO6709(string(buf))
	if !ok {
		return nil, fmt.Errorf("malformed ISO 6709 location %q", string(buf))
	}
	return coord, nil
}

// parseISO6709 parses the compact ISO 6709 form "+DD.DDDD+DDD.DDDD/" with an
// optional third altitude group, which is ignored.
func parseISO6709(s string) (*models.Coordinate, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "/")
	if len(s) == 0 || (s[0] != '+' && s[0] != '-') {
		return nil, false
	}

	var parts []string
	startIdx := 0
	for i := 1; i < len(s); i++ {
		if s[i] == '+' || s[i] == '-' {
			parts = append(parts, s[startIdx:i])
			startIdx = i
		}
	}
	parts = append(parts, s[startIdx:])

	if len(parts) < 2 {
		return nil, false
	}
	lat, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nil, false
	}
	lng, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return nil, false
	}
	return &models.Coordinate{Lat: lat, Lng: lng}, true
}
