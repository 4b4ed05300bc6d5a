// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package extract

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/photarium/internal/models"
)

// putEntry writes one 12-byte IFD entry at off.
func putEntry(b []byte, off int, le binary.ByteOrder, tag, typ uint16, count, val uint32) {
	le.PutUint16(b[off:], tag)
	le.PutUint16(b[off+2:], typ)
	le.PutUint32(b[off+4:], count)
	le.PutUint32(b[off+8:], val)
}

func putRational(b []byte, off int, le binary.ByteOrder, num, den uint32) {
	le.PutUint32(b[off:], num)
	le.PutUint32(b[off+4:], den)
}

// buildExifTIFF synthesizes a little-endian TIFF blob carrying
// DateTimeOriginal 2021:06:15 10:30:00 and GPS 37°30' / 122°15' with the
// given hemisphere refs.
func buildExifTIFF(latRef, lngRef string) []byte {
	le := binary.LittleEndian
	b := make([]byte, 178)

	copy(b, "II")
	le.PutUint16(b[2:], 42)
	le.PutUint32(b[4:], 8)

	// IFD0: pointers to the Exif and GPS IFDs.
	le.PutUint16(b[8:], 2)
	putEntry(b, 10, le, tagExifIFDPointer, typeLong, 1, 38)
	putEntry(b, 22, le, tagGPSIFDPointer, typeLong, 1, 56)

	// Exif IFD: DateTimeOriginal stored out of line.
	le.PutUint16(b[38:], 1)
	putEntry(b, 40, le, tagDateTimeOriginal, typeASCII, 20, 110)

	// GPS IFD: refs inline, DMS rationals out of line.
	le.PutUint16(b[56:], 4)
	putEntry(b, 58, le, tagGPSLatitudeRef, typeASCII, 2, 0)
	copy(b[66:], latRef+"\x00")
	putEntry(b, 70, le, tagGPSLatitude, typeRational, 3, 130)
	putEntry(b, 82, le, tagGPSLongitudeRef, typeASCII, 2, 0)
	copy(b[90:], lngRef+"\x00")
	putEntry(b, 94, le, tagGPSLongitude, typeRational, 3, 154)

	copy(b[110:], "2021:06:15 10:30:00\x00")
	putRational(b, 130, le, 37, 1)
	putRational(b, 138, le, 30, 1)
	putRational(b, 146, le, 0, 1)
	putRational(b, 154, le, 122, 1)
	putRational(b, 162, le, 15, 1)
	putRational(b, 170, le, 0, 1)
	return b
}

// buildJPEG wraps a TIFF blob in a minimal JPEG with one APP1/Exif segment.
func buildJPEG(tiff []byte) []byte {
	payload := append([]byte("Exif\x00\x00"), tiff...)
	segLen := len(payload) + 2
	out := []byte{0xFF, 0xD8, 0xFF, 0xE1, byte(segLen >> 8), byte(segLen)}
	out = append(out, payload...)
	out = append(out, 0xFF, 0xD9)
	return out
}

func buildPlainJPEG() []byte {
	jfif := []byte("JFIF\x00\x01\x02\x00\x00\x01\x00\x01\x00\x00")
	segLen := len(jfif) + 2
	out := []byte{0xFF, 0xD8, 0xFF, 0xE0, byte(segLen >> 8), byte(segLen)}
	out = append(out, jfif...)
	out = append(out, 0xFF, 0xD9)
	return out
}

func mp4Box(typ string, payload []byte) []byte {
	out := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(out, uint32(8+len(payload)))
	copy(out[4:], typ)
	copy(out[8:], payload)
	return out
}

// buildMP4 synthesizes ftyp + moov(mvhd, udta/©xyz). A zero creation time
// omits the timestamp; an empty loc omits the location atom.
func buildMP4(creation uint32, loc string) []byte {
	var moov []byte

	mvhd := make([]byte, 12)
	binary.BigEndian.PutUint32(mvhd[4:], creation)
	moov = append(moov, mp4Box("mvhd", mvhd)...)

	if loc != "" {
		xyz := make([]byte, 4+len(loc))
		binary.BigEndian.PutUint16(xyz, uint16(len(loc)))
		binary.BigEndian.PutUint16(xyz[2:], 0x15C7)
		copy(xyz[4:], loc)
		moov = append(moov, mp4Box("udta", mp4Box("\xa9xyz", xyz))...)
	}

	out := mp4Box("ftyp", []byte("isomiso2"))
	out = append(out, mp4Box("moov", moov)...)
	return out
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestExtractJPEGWithEXIF(t *testing.T) {
	t.Parallel()

	data := buildJPEG(buildExifTIFF("N", "E"))
	path := writeFile(t, t.TempDir(), "photo.jpg", data)

	meta, err := New().ExtractFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}

	if meta.MediaType != models.MediaTypePhoto {
		t.Errorf("MediaType = %q, want %q", meta.MediaType, models.MediaTypePhoto)
	}
	want := time.Date(2021, 6, 15, 10, 30, 0, 0, time.UTC)
	if meta.TakenAt == nil || !meta.TakenAt.Equal(want) {
		t.Errorf("TakenAt = %v, want %v", meta.TakenAt, want)
	}
	if meta.Coordinate == nil {
		t.Fatal("Coordinate = nil, want value")
	}
	if meta.Coordinate.Lat != 37.5 || meta.Coordinate.Lng != 122.25 {
		t.Errorf("Coordinate = %+v, want {37.5 122.25}", meta.Coordinate)
	}
	if meta.SizeBytes != int64(len(data)) {
		t.Errorf("SizeBytes = %d, want %d", meta.SizeBytes, len(data))
	}
	if len(meta.ContentHash) != 16 {
		t.Errorf("ContentHash = %q, want 16 hex chars", meta.ContentHash)
	}
}

func TestExtractGPSHemispheres(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		latRef, lngRef   string
		wantLat, wantLng float64
	}{
		{"northeast", "N", "E", 37.5, 122.25},
		{"southwest", "S", "W", -37.5, -122.25},
		{"northwest", "N", "W", 37.5, -122.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeFile(t, t.TempDir(), "p.jpg", buildJPEG(buildExifTIFF(tt.latRef, tt.lngRef)))
			meta, err := New().ExtractFile(context.Background(), path)
			if err != nil {
				t.Fatalf("ExtractFile: %v", err)
			}
			if meta.Coordinate == nil {
				t.Fatal("Coordinate = nil, want value")
			}
			if meta.Coordinate.Lat != tt.wantLat || meta.Coordinate.Lng != tt.wantLng {
				t.Errorf("Coordinate = %+v, want {%v %v}", meta.Coordinate, tt.wantLat, tt.wantLng)
			}
		})
	}
}

func TestExtractJPEGWithoutEXIF(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "plain.jpg", buildPlainJPEG())
	meta, err := New().ExtractFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if meta.TakenAt != nil {
		t.Errorf("TakenAt = %v, want nil", meta.TakenAt)
	}
	if meta.Coordinate != nil {
		t.Errorf("Coordinate = %+v, want nil", meta.Coordinate)
	}
	if meta.MediaType != models.MediaTypePhoto {
		t.Errorf("MediaType = %q, want %q", meta.MediaType, models.MediaTypePhoto)
	}
}

func TestExtractCorruptJPEG(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "broken.jpg", []byte("not a jpeg at all"))
	_, err := New().ExtractFile(context.Background(), path)

	var xerr *Error
	if !errors.As(err, &xerr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if xerr.Path != path {
		t.Errorf("Error.Path = %q, want %q", xerr.Path, path)
	}
	if xerr.Reason != "corrupt JPEG" {
		t.Errorf("Error.Reason = %q, want %q", xerr.Reason, "corrupt JPEG")
	}
}

func TestExtractUnsupportedType(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "notes.txt", []byte("hello"))
	_, err := New().ExtractFile(context.Background(), path)

	var xerr *Error
	if !errors.As(err, &xerr) {
		t.Fatalf("error = %v, want *Error", err)
	}
}

func TestExtractDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sub := filepath.Join(dir, "album.jpg")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	_, err := New().ExtractFile(context.Background(), sub)
	var xerr *Error
	if !errors.As(err, &xerr) {
		t.Fatalf("error = %v, want *Error", err)
	}
}

func TestExtractContextCanceled(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "p.jpg", buildPlainJPEG())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().ExtractFile(ctx, path)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	var xerr *Error
	if errors.As(err, &xerr) {
		t.Error("cancellation should not be wrapped as an extraction error")
	}
}

func TestExtractStandaloneTIFF(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "scan.tif", buildExifTIFF("N", "E"))
	meta, err := New().ExtractFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if meta.Coordinate == nil || meta.Coordinate.Lat != 37.5 {
		t.Errorf("Coordinate = %+v, want lat 37.5", meta.Coordinate)
	}
	if meta.TakenAt == nil {
		t.Error("TakenAt = nil, want value")
	}
}

func TestExtractMP4(t *testing.T) {
	t.Parallel()

	want := time.Date(2021, 6, 15, 10, 30, 0, 0, time.UTC)
	creation := uint32(want.Unix() + mp4Epoch)
	path := writeFile(t, t.TempDir(), "clip.mp4", buildMP4(creation, "+37.5000-122.2500/"))

	meta, err := New().ExtractFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if meta.MediaType != models.MediaTypeVideo {
		t.Errorf("MediaType = %q, want %q", meta.MediaType, models.MediaTypeVideo)
	}
	if meta.TakenAt == nil || !meta.TakenAt.Equal(want) {
		t.Errorf("TakenAt = %v, want %v", meta.TakenAt, want)
	}
	if meta.Coordinate == nil {
		t.Fatal("Coordinate = nil, want value")
	}
	if meta.Coordinate.Lat != 37.5 || meta.Coordinate.Lng != -122.25 {
		t.Errorf("Coordinate = %+v, want {37.5 -122.25}", meta.Coordinate)
	}
}

func TestExtractMP4WithoutMetadata(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "clip.mp4", buildMP4(0, ""))
	meta, err := New().ExtractFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if meta.TakenAt != nil || meta.Coordinate != nil {
		t.Errorf("got TakenAt=%v Coordinate=%+v, want both nil", meta.TakenAt, meta.Coordinate)
	}
}

func TestExtractCorruptMP4(t *testing.T) {
	t.Parallel()

	// A box whose declared size runs past the end of the file.
	data := buildMP4(0, "")
	binary.BigEndian.PutUint32(data[len(data)-20:], 1<<30)
	path := writeFile(t, t.TempDir(), "clip.mp4", data)

	_, err := New().ExtractFile(context.Background(), path)
	var xerr *Error
	if !errors.As(err, &xerr) {
		t.Fatalf("error = %v, want *Error", err)
	}
}

func TestExtractInvalidCoordinateDropped(t *testing.T) {
	t.Parallel()

	// Latitude 95 N is outside WGS84 and must be treated as absent.
	tiff := buildExifTIFF("N", "E")
	binary.LittleEndian.PutUint32(tiff[130:], 95)
	path := writeFile(t, t.TempDir(), "p.jpg", buildJPEG(tiff))

	meta, err := New().ExtractFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if meta.Coordinate != nil {
		t.Errorf("Coordinate = %+v, want nil for out-of-range GPS", meta.Coordinate)
	}
	if meta.TakenAt == nil {
		t.Error("TakenAt = nil, want value despite dropped coordinate")
	}
}

func TestContentHashProperties(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := buildPlainJPEG()

	a := writeFile(t, dir, "a.jpg", data)
	b := writeFile(t, dir, "b.jpg", data)

	metaA, err := New().ExtractFile(context.Background(), a)
	if err != nil {
		t.Fatalf("ExtractFile a: %v", err)
	}
	metaB, err := New().ExtractFile(context.Background(), b)
	if err != nil {
		t.Fatalf("ExtractFile b: %v", err)
	}
	if metaA.ContentHash != metaB.ContentHash {
		t.Errorf("identical content hashed differently: %q vs %q", metaA.ContentHash, metaB.ContentHash)
	}

	// Perturbing content changes the hash.
	mutated := append([]byte(nil), data...)
	mutated[len(mutated)-3] ^= 0xFF
	c := writeFile(t, dir, "c.jpg", mutated)
	metaC, err := New().ExtractFile(context.Background(), c)
	if err != nil {
		t.Fatalf("ExtractFile c: %v", err)
	}
	if metaC.ContentHash == metaA.ContentHash {
		t.Error("different content produced the same hash")
	}
}

func TestMediaTypeForPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path     string
		wantType models.MediaType
		wantOK   bool
	}{
		{"/photos/IMG_0001.JPG", models.MediaTypePhoto, true},
		{"/photos/trip/pano.jpeg", models.MediaTypePhoto, true},
		{"/photos/scan.tiff", models.MediaTypePhoto, true},
		{"/videos/clip.MOV", models.MediaTypeVideo, true},
		{"/videos/clip.mkv", models.MediaTypeVideo, true},
		{"/photos/notes.txt", "", false},
		{"/photos/archive.zip", "", false},
		{"/photos/noext", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			got, ok := MediaTypeForPath(tt.path)
			if got != tt.wantType || ok != tt.wantOK {
				t.Errorf("MediaTypeForPath(%q) = (%q, %v), want (%q, %v)",
					tt.path, got, ok, tt.wantType, tt.wantOK)
			}
		})
	}
}

func TestParseISO6709(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		wantLat float64
		wantLng float64
		wantOK  bool
	}{
		{"+37.5000-122.2500/", 37.5, -122.25, true},
		{"-33.8688+151.2093/", -33.8688, 151.2093, true},
		{"+48.8577+002.2950+034.000/", 48.8577, 2.295, true},
		{"+37.5000/", 0, 0, false},
		{"37.5-122.25/", 0, 0, false},
		{"", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, ok := parseISO6709(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("parseISO6709(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.Lat != tt.wantLat || got.Lng != tt.wantLng {
				t.Errorf("parseISO6709(%q) = %+v, want {%v %v}", tt.in, got, tt.wantLat, tt.wantLng)
			}
		})
	}
}

func TestParseTIFFBigEndian(t *testing.T) {
	t.Parallel()

	// Same structure as buildExifTIFF but big-endian, date only.
	be := binary.BigEndian
	b := make([]byte, 60)
	copy(b, "MM")
	be.PutUint16(b[2:], 42)
	be.PutUint32(b[4:], 8)
	be.PutUint16(b[8:], 1)
	putEntry(b, 10, be, tagDateTime, typeASCII, 20, 26)
	copy(b[26:], "2019:12:31 23:59:59\x00")

	got, err := parseTIFFBytes(b)
	if err != nil {
		t.Fatalf("parseTIFFBytes: %v", err)
	}
	if got == nil || got.TakenAt == nil {
		t.Fatal("TakenAt = nil, want value")
	}
	want := time.Date(2019, 12, 31, 23, 59, 59, 0, time.UTC)
	if !got.TakenAt.Equal(want) {
		t.Errorf("TakenAt = %v, want %v", got.TakenAt, want)
	}
}
