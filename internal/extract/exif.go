// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package extract

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tomtom215/photarium/internal/models"
)

// exifData is the subset of EXIF Photarium cares about.
type exifData struct {
	TakenAt    *time.Time
	Coordinate *models.Coordinate
}

// JPEG markers.
const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerAPP1 = 0xE1
)

// exifHeader prefixes the TIFF blob inside an APP1 segment.
var exifHeader = []byte("Exif\x00\x00")

// parseJPEG scans JPEG segments for an APP1/Exif payload and parses it.
// A JPEG without EXIF returns (nil, nil); a structurally broken stream
// returns an error.
func parseJPEG(r io.Reader) (*exifData, error) {
	br := bufio.NewReader(r)

	var soi [2]byte
	if _, err := io.ReadFull(br, soi[:]); err != nil {
		return nil, fmt.Errorf("read SOI: %w", err)
	}
	if soi[0] != 0xFF || soi[1] != markerSOI {
		return nil, fmt.Errorf("missing SOI marker, got %02x%02x", soi[0], soi[1])
	}

	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("read marker: %w", err)
		}
		if b != 0xFF {
			return nil, fmt.Errorf("expected marker byte 0xFF, got %02x", b)
		}

		// Fill bytes: consecutive 0xFF are legal padding before a marker.
		marker := byte(0xFF)
		for marker == 0xFF {
			marker, err = br.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("read marker id: %w", err)
			}
		}

		// Entropy-coded data follows SOS; EOI ends the stream. Either way
		// there is no EXIF to find past this point.
		if marker == markerSOS || marker == markerEOI {
			return nil, nil
		}
		// Standalone markers carry no length field.
		if marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			continue
		}

		var lenBuf [2]byte
		if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
			return nil, fmt.Errorf("read segment length: %w", err)
		}
		segLen := int(binary.BigEndian.Uint16(lenBuf[:]))
		if segLen < 2 {
			return nil, fmt.Errorf("segment length %d below minimum", segLen)
		}
		payloadLen := segLen - 2

		if marker == markerAPP1 {
			payload := make([]byte, payloadLen)
			if _, err := io.ReadFull(br, payload); err != nil {
				return nil, fmt.Errorf("read APP1 payload: %w", err)
			}
			if len(payload) > len(exifHeader) && bytes.HasPrefix(payload, exifHeader) {
				return parseTIFFBytes(payload[len(exifHeader):])
			}
			continue
		}

		if _, err := br.Discard(payloadLen); err != nil {
			return nil, fmt.Errorf("skip segment %02x: %w", marker, err)
		}
	}
}

// tiffReadCap bounds how much of a standalone TIFF file is loaded for
// metadata parsing. Camera TIFFs keep their IFDs near the front.
const tiffReadCap = 4 * 1024 * 1024

// parseTIFF parses a standalone TIFF file (the same IFD structure EXIF
// embeds in JPEG).
func parseTIFF(r io.Reader, size int64) (*exifData, error) {
	if size > tiffReadCap {
		size = tiffReadCap
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read TIFF: %w", err)
	}
	return parseTIFFBytes(buf)
}

// TIFF field types and the tags Photarium reads.
const (
	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeUndefined = 7
	typeSLong     = 9
	typeSRational = 10

	tagDateTime          = 0x0132
	tagExifIFDPointer    = 0x8769
	tagGPSIFDPointer     = 0x8825
	tagDateTimeOriginal  = 0x9003
	tagDateTimeDigitized = 0x9004
	tagGPSLatitudeRef    = 0x0001
	tagGPSLatitude       = 0x0002
	tagGPSLongitudeRef   = 0x0003
	tagGPSLongitude      = 0x0004
)

func typeSize(t uint16) int {
	switch t {
	case typeByte, typeASCII, typeUndefined:
		return 1
	case typeShort:
		return 2
	case typeLong, typeSLong:
		return 4
	case typeRational, typeSRational:
		return 8
	default:
		return 0
	}
}

// ifdEntry is one 12-byte IFD field.
type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	raw   [4]byte
}

// parseTIFFBytes parses a TIFF blob: header, IFD0, then the Exif and GPS
// sub-IFDs it points to. Offsets that run past the blob end the walk
// gracefully rather than failing, since a truncated optional IFD is not a
// corrupt file.
func parseTIFFBytes(b []byte) (*exifData, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("TIFF header truncated at %d bytes", len(b))
	}

	var bo binary.ByteOrder
	switch {
	case b[0] == 'I' && b[1] == 'I':
		bo = binary.LittleEndian
	case b[0] == 'M' && b[1] == 'M':
		bo = binary.BigEndian
	default:
		return nil, fmt.Errorf("unknown TIFF byte order %02x%02x", b[0], b[1])
	}
	if bo.Uint16(b[2:4]) != 42 {
		return nil, fmt.Errorf("bad TIFF magic %d", bo.Uint16(b[2:4]))
	}

	var (
		out          exifData
		dateTime     string
		dateOriginal string
		exifIFDOff   uint32
		gpsIFDOff    uint32
	)

	ifd0 := bo.Uint32(b[4:8])
	walkIFD(b, ifd0, bo, func(e ifdEntry) {
		switch e.tag {
		case tagDateTime:
			dateTime, _ = entryASCII(b, e, bo)
		case tagExifIFDPointer:
			exifIFDOff, _ = entryLong(e, bo)
		case tagGPSIFDPointer:
			gpsIFDOff, _ = entryLong(e, bo)
		}
	})

	if exifIFDOff != 0 {
		walkIFD(b, exifIFDOff, bo, func(e ifdEntry) {
			switch e.tag {
			case tagDateTimeOriginal:
				dateOriginal, _ = entryASCII(b, e, bo)
			case tagDateTimeDigitized:
				if dateOriginal == "" {
					dateOriginal, _ = entryASCII(b, e, bo)
				}
			}
		})
	}

	if when := parseExifTime(dateOriginal); when != nil {
		out.TakenAt = when
	} else if when := parseExifTime(dateTime); when != nil {
		out.TakenAt = when
	}

	if gpsIFDOff != 0 {
		var (
			latRef, lngRef string
			latVal, lngVal []float64
		)
		walkIFD(b, gpsIFDOff, bo, func(e ifdEntry) {
			switch e.tag {
			case tagGPSLatitudeRef:
				latRef, _ = entryASCII(b, e, bo)
			case tagGPSLatitude:
				latVal, _ = entryRationals(b, e, bo)
			case tagGPSLongitudeRef:
				lngRef, _ = entryASCII(b, e, bo)
			case tagGPSLongitude:
				lngVal, _ = entryRationals(b, e, bo)
			}
		})

		lat, latOK := dmsToDecimal(latVal, latRef == "S")
		lng, lngOK := dmsToDecimal(lngVal, lngRef == "W")
		if latOK && lngOK {
			out.Coordinate = &models.Coordinate{Lat: lat, Lng: lng}
		}
	}

	if out.TakenAt == nil && out.Coordinate == nil {
		return nil, nil
	}
	return &out, nil
}

// walkIFD visits every entry of the IFD at off. Out-of-bounds offsets and
// counts end the walk without error.
func walkIFD(b []byte, off uint32, bo binary.ByteOrder, visit func(ifdEntry)) {
	end := uint32(len(b))
	if off+2 > end || off+2 < off {
		return
	}
	n := uint32(bo.Uint16(b[off : off+2]))
	base := off + 2
	if base+n*12 > end || base+n*12 < base {
		return
	}
	for i := uint32(0); i < n; i++ {
		p := base + i*12
		e := ifdEntry{
			tag:   bo.Uint16(b[p : p+2]),
			typ:   bo.Uint16(b[p+2 : p+4]),
			count: bo.Uint32(b[p+4 : p+8]),
		}
		copy(e.raw[:], b[p+8:p+12])
		visit(e)
	}
}

// entryValueBytes resolves an entry's value: inline in the raw field when it
// fits in 4 bytes, otherwise at the encoded offset into the TIFF blob.
func entryValueBytes(b []byte, e ifdEntry, bo binary.ByteOrder) ([]byte, bool) {
	sz := typeSize(e.typ)
	if sz == 0 || e.count == 0 {
		return nil, false
	}
	total := uint64(sz) * uint64(e.count)
	if total <= 4 {
		return e.raw[:total], true
	}
	off := uint64(bo.Uint32(e.raw[:]))
	if off+total > uint64(len(b)) {
		return nil, false
	}
	return b[off : off+total], true
}

// entryASCII returns an ASCII entry's value with trailing NULs stripped.
func entryASCII(b []byte, e ifdEntry, bo binary.ByteOrder) (string, bool) {
	if e.typ != typeASCII {
		return "", false
	}
	v, ok := entryValueBytes(b, e, bo)
	if !ok {
		return "", false
	}
	return strings.TrimRight(string(v), "\x00"), true
}

// entryLong returns a single LONG entry's value.
func entryLong(e ifdEntry, bo binary.ByteOrder) (uint32, bool) {
	if (e.typ != typeLong && e.typ != typeShort) || e.count != 1 {
		return 0, false
	}
	if e.typ == typeShort {
		return uint32(bo.Uint16(e.raw[:2])), true
	}
	return bo.Uint32(e.raw[:]), true
}

// entryRationals returns a RATIONAL entry's values as float64s. A zero
// denominator invalidates the whole entry.
func entryRationals(b []byte, e ifdEntry, bo binary.ByteOrder) ([]float64, bool) {
	if e.typ != typeRational {
		return nil, false
	}
	v, ok := entryValueBytes(b, e, bo)
	if !ok {
		return nil, false
	}
	out := make([]float64, e.count)
	for i := uint32(0); i < e.count; i++ {
		num := bo.Uint32(v[i*8 : i*8+4])
		den := bo.Uint32(v[i*8+4 : i*8+8])
		if den == 0 {
			return nil, false
		}
		out[i] = float64(num) / float64(den)
	}
	return out, true
}

// exifTimeLayout is the EXIF timestamp format. EXIF carries no timezone;
// values are recorded as UTC.
const exifTimeLayout = "2006:01:02 15:04:05"

func parseExifTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	when, err := time.ParseInLocation(exifTimeLayout, s, time.UTC)
	if err != nil {
		return nil
	}
	return &when
}

// dmsToDecimal converts GPS degrees/minutes/seconds rationals to decimal
// degrees. Shorter value lists are legal; trailing components default to 0.
func dmsToDecimal(vals []float64, negative bool) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	dec := vals[0]
	if len(vals) > 1 {
		dec += vals[1] / 60
	}
	if len(vals) > 2 {
		dec += vals[2] / 3600
	}
	if negative {
		dec = -dec
	}
	return dec, true
}
