// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package thumbs

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/photarium/internal/config"
	"github.com/tomtom215/photarium/internal/events"
	"github.com/tomtom215/photarium/internal/models"
)

type fakeRenderer struct {
	mu    sync.Mutex
	calls []string
	dsts  []string
	err   error
	gate  chan struct{}
}

func (f *fakeRenderer) Render(ctx context.Context, src, dst string) error {
	f.mu.Lock()
	f.calls = append(f.calls, src)
	f.dsts = append(f.dsts, dst)
	err := f.err
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeRenderer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRenderer) lastDst() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.dsts) == 0 {
		return ""
	}
	return f.dsts[len(f.dsts)-1]
}

func (f *fakeRenderer) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeCatalog struct {
	mu       sync.Mutex
	statuses map[int64][]models.ThumbStatus
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{statuses: make(map[int64][]models.ThumbStatus)}
}

func (f *fakeCatalog) SetThumbStatus(ctx context.Context, id int64, status models.ThumbStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = append(f.statuses[id], status)
	return nil
}

func (f *fakeCatalog) last(id int64) (models.ThumbStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	history := f.statuses[id]
	if len(history) == 0 {
		return "", false
	}
	return history[len(history)-1], true
}

func testThumbsConfig(t *testing.T) config.ThumbsConfig {
	t.Helper()
	return config.ThumbsConfig{
		Enabled:          true,
		Path:             t.TempDir(),
		MaxDim:           64,
		Workers:          1,
		BreakerThreshold: 3,
		BreakerCooldown:  100 * time.Millisecond,
	}
}

type fixture struct {
	svc *Service
	fr  *fakeRenderer
	fc  *fakeCatalog
	bus *events.Bus
}

func newFixture(t *testing.T, cfg config.ThumbsConfig) *fixture {
	t.Helper()
	fc := newFakeCatalog()
	fr := &fakeRenderer{}
	bus := events.NewBus(nil)
	t.Cleanup(func() { _ = bus.Close() })

	svc := New(fc, bus, cfg)
	svc.render = fr
	return &fixture{svc: svc, fr: fr, fc: fc, bus: bus}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	if err := f.svc.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = f.svc.Stop() })
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRequestRendersReady(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testThumbsConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	thumbEvents, err := f.bus.SubscribeThumbs(ctx)
	if err != nil {
		t.Fatalf("SubscribeThumbs: %v", err)
	}
	f.start(t)

	f.svc.Request(7, "/lib/a.jpg")

	waitFor(t, "ready status", func() bool {
		status, ok := f.fc.last(7)
		return ok && status == models.ThumbStatusReady
	})
	if got := f.fr.lastDst(); got != f.svc.ThumbPath(7) {
		t.Errorf("rendered to %q, want %q", got, f.svc.ThumbPath(7))
	}

	select {
	case ev := <-thumbEvents:
		if ev.PhotoID != 7 || ev.Status != string(models.ThumbStatusReady) {
			t.Errorf("event = %+v, want photo 7 ready", ev)
		}
	case <-time.After(5 * time.Second):
		t.Error("no thumbnail event published")
	}
}

func TestRenderFailureReportsFailed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testThumbsConfig(t))
	f.fr.setErr(errors.New("decoder choked"))
	f.start(t)

	f.svc.Request(9, "/lib/broken.jpg")

	waitFor(t, "failed status", func() bool {
		status, ok := f.fc.last(9)
		return ok && status == models.ThumbStatusFailed
	})
}

func TestDuplicateRequestsCollapse(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testThumbsConfig(t))
	gate := make(chan struct{})
	f.fr.gate = gate
	f.start(t)

	f.svc.Request(1, "/lib/a.jpg")
	f.svc.Request(1, "/lib/a.jpg")
	f.svc.Request(1, "/lib/a.jpg")

	waitFor(t, "first render start", func() bool { return f.fr.count() == 1 })
	close(gate)
	waitFor(t, "render completion", func() bool {
		_, ok := f.fc.last(1)
		return ok
	})

	time.Sleep(100 * time.Millisecond)
	if got := f.fr.count(); got != 1 {
		t.Fatalf("renderer called %d times, want 1", got)
	}

	// Completion releases the dedup entry, so a later request renders.
	f.svc.Request(1, "/lib/a.jpg")
	waitFor(t, "re-render", func() bool { return f.fr.count() == 2 })
}

func TestQueueOverflowDropsAndReleases(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testThumbsConfig(t))
	f.svc.queue = make(chan renderJob, 1)
	gate := make(chan struct{})
	f.fr.gate = gate
	f.start(t)

	f.svc.Request(1, "/lib/a.jpg")
	waitFor(t, "worker busy", func() bool { return f.fr.count() == 1 })
	f.svc.Request(2, "/lib/b.jpg")
	f.svc.Request(3, "/lib/c.jpg")

	close(gate)
	waitFor(t, "queued jobs settle", func() bool {
		_, ok1 := f.fc.last(1)
		_, ok2 := f.fc.last(2)
		return ok1 && ok2
	})

	time.Sleep(100 * time.Millisecond)
	if _, ok := f.fc.last(3); ok {
		t.Fatal("dropped request reached the catalog")
	}
	if got := f.fr.count(); got != 2 {
		t.Fatalf("renderer called %d times, want 2", got)
	}

	// The drop released the dedup entry, so a retry goes through.
	f.svc.Request(3, "/lib/c.jpg")
	waitFor(t, "retried render", func() bool {
		status, ok := f.fc.last(3)
		return ok && status == models.ThumbStatusReady
	})
}

func TestBreakerOpensOnStoreFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testThumbsConfig(t))
	f.fr.setErr(fmt.Errorf("%w: disk full", ErrStore))
	f.start(t)

	for i := int64(1); i <= 3; i++ {
		f.svc.Request(i, fmt.Sprintf("/lib/%d.jpg", i))
		waitFor(t, "store failure settles", func() bool {
			status, ok := f.fc.last(i)
			return ok && status == models.ThumbStatusFailed
		})
	}

	// Open breaker rejects without reaching the renderer.
	f.svc.Request(4, "/lib/4.jpg")
	waitFor(t, "rejected render settles", func() bool {
		status, ok := f.fc.last(4)
		return ok && status == models.ThumbStatusFailed
	})
	if got := f.fr.count(); got != 3 {
		t.Fatalf("renderer called %d times, want 3", got)
	}

	// After the cooldown the half-open probe succeeds and closes it.
	f.fr.setErr(nil)
	time.Sleep(150 * time.Millisecond)
	f.svc.Request(5, "/lib/5.jpg")
	waitFor(t, "recovered render", func() bool {
		status, ok := f.fc.last(5)
		return ok && status == models.ThumbStatusReady
	})
	if got := f.fr.count(); got != 4 {
		t.Fatalf("renderer called %d times, want 4", got)
	}
}

func TestDecodeFailuresDoNotTripBreaker(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testThumbsConfig(t))
	f.fr.setErr(errors.New("corrupt file"))
	f.start(t)

	for i := int64(1); i <= 5; i++ {
		f.svc.Request(i, fmt.Sprintf("/lib/%d.jpg", i))
		waitFor(t, "decode failure settles", func() bool {
			status, ok := f.fc.last(i)
			return ok && status == models.ThumbStatusFailed
		})
	}
	if got := f.fr.count(); got != 5 {
		t.Fatalf("renderer called %d times, want 5: decode failures tripped the breaker", got)
	}
}

func TestLifecycleGuards(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testThumbsConfig(t))

	if err := f.svc.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.svc.Start(); err == nil {
		t.Error("second Start succeeded")
	}
	if err := f.svc.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := f.svc.Stop(); err == nil {
		t.Error("second Stop succeeded")
	}

	f.svc.Request(1, "/lib/a.jpg")
	time.Sleep(50 * time.Millisecond)
	if got := f.fr.count(); got != 0 {
		t.Errorf("stopped pipeline rendered %d jobs", got)
	}
}

func TestThumbPath(t *testing.T) {
	t.Parallel()

	cfg := testThumbsConfig(t)
	f := newFixture(t, cfg)
	if got, want := f.svc.ThumbPath(42), filepath.Join(cfg.Path, "42.jpg"); got != want {
		t.Errorf("ThumbPath(42) = %q, want %q", got, want)
	}
}

func TestDiskRendererFitsWithinMaxDim(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	writeTestPNG(t, src, 100, 50)

	r := &DiskRenderer{maxDim: 64, quality: jpegQuality}
	dst := filepath.Join(dir, "thumbs", "out.jpg")
	if err := r.Render(context.Background(), src, dst); err != nil {
		t.Fatalf("Render: %v", err)
	}

	file, err := os.Open(dst)
	if err != nil {
		t.Fatalf("open thumbnail: %v", err)
	}
	defer file.Close()
	img, err := jpeg.Decode(file)
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 64 || bounds.Dy() != 32 {
		t.Errorf("thumbnail is %dx%d, want 64x32", bounds.Dx(), bounds.Dy())
	}
}

func TestDiskRendererCorruptSourceIsPerFileError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "bad.jpg")
	if err := os.WriteFile(src, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := &DiskRenderer{maxDim: 64, quality: jpegQuality}
	err := r.Render(context.Background(), src, filepath.Join(dir, "out.jpg"))
	if err == nil {
		t.Fatal("Render succeeded on garbage input")
	}
	if errors.Is(err, ErrStore) {
		t.Errorf("decode failure reported as store failure: %v", err)
	}
}

func TestDiskRendererUnsupportedExtension(t *testing.T) {
	t.Parallel()

	r := &DiskRenderer{maxDim: 64, quality: jpegQuality}
	err := r.Render(context.Background(), "/lib/notes.txt", "/tmp/out.jpg")
	if err == nil {
		t.Fatal("Render succeeded on an unsupported extension")
	}
	if errors.Is(err, ErrStore) {
		t.Errorf("unsupported file reported as store failure: %v", err)
	}
}

func TestDiskRendererVideoWithoutFFmpeg(t *testing.T) {
	t.Parallel()

	r := &DiskRenderer{maxDim: 64, quality: jpegQuality, ffmpeg: ""}
	err := r.Render(context.Background(), "/lib/clip.webm", "/tmp/out.jpg")
	if err == nil {
		t.Fatal("Render succeeded without ffmpeg")
	}
	if errors.Is(err, ErrStore) {
		t.Errorf("missing ffmpeg reported as store failure: %v", err)
	}
}

func TestWriteAtomicWrapsStoreFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The destination directory path runs through a regular file, so
	// MkdirAll must fail.
	err := writeAtomic(filepath.Join(blocker, "a", "out.jpg"), []byte("data"))
	if !errors.Is(err, ErrStore) {
		t.Errorf("err = %v, want ErrStore", err)
	}
}

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		t.Fatal(err)
	}
}
