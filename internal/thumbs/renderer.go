// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package thumbs

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/tomtom215/photarium/internal/extract"
	"github.com/tomtom215/photarium/internal/logging"
	"github.com/tomtom215/photarium/internal/models"
)

const (
	defaultMaxDim = 320
	jpegQuality   = 80
)

// Renderer produces one thumbnail file from one source media file.
type Renderer interface {
	Render(ctx context.Context, src, dst string) error
}

// DiskRenderer decodes the source, fits it into a square of maxDim pixels,
// and writes a JPEG to the destination path. Video sources have their first
// frame extracted through ffmpeg when it is installed.
type DiskRenderer struct {
	maxDim  int
	quality int
	ffmpeg  string
}

// NewDiskRenderer probes for ffmpeg once; without it, video thumbnails
// report per-file failures while images keep working.
func NewDiskRenderer(maxDim int) *DiskRenderer {
	if maxDim <= 0 {
		maxDim = defaultMaxDim
	}
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		ffmpeg = ""
		logging.Warn().Msg("ffmpeg not found, video thumbnails unavailable")
	}
	return &DiskRenderer{maxDim: maxDim, quality: jpegQuality, ffmpeg: ffmpeg}
}

// Render decodes src into a thumbnail at dst. Decode failures are per-file
// errors; write failures wrap ErrStore.
func (r *DiskRenderer) Render(ctx context.Context, src, dst string) error {
	mediaType, ok := extract.MediaTypeForPath(src)
	if !ok {
		return fmt.Errorf("unsupported media file %q", src)
	}

	var img image.Image
	var err error
	if mediaType == models.MediaTypeVideo {
		img, err = r.decodeVideoFrame(ctx, src)
	} else {
		img, err = imaging.Open(src, imaging.AutoOrientation(true))
	}
	if err != nil {
		return fmt.Errorf("decode %q: %w", src, err)
	}

	thumb := imaging.Fit(img, r.maxDim, r.maxDim, imaging.Lanczos)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: r.quality}); err != nil {
		return fmt.Errorf("encode thumbnail for %q: %w", src, err)
	}
	return writeAtomic(dst, buf.Bytes())
}

// decodeVideoFrame extracts a frame one second in, retrying from the start
// for clips shorter than that.
func (r *DiskRenderer) decodeVideoFrame(ctx context.Context, src string) (image.Image, error) {
	if r.ffmpeg == "" {
		return nil, fmt.Errorf("ffmpeg not installed")
	}

	out, err := r.runFFmpeg(ctx, "-i", src, "-ss", "00:00:01", "-vframes", "1", "-f", "image2pipe", "-vcodec", "png", "-")
	if err != nil {
		out, err = r.runFFmpeg(ctx, "-i", src, "-vframes", "1", "-f", "image2pipe", "-vcodec", "png", "-")
	}
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decode extracted frame: %w", err)
	}
	return img, nil
}

func (r *DiskRenderer) runFFmpeg(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.ffmpeg, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output")
	}
	return stdout.Bytes(), nil
}

// writeAtomic stages the bytes beside the destination and renames, so a
// crash mid-write never leaves a truncated thumbnail at the final path.
func writeAtomic(dst string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	tmp := dst + ".partial"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}
