// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func mustWrite(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func candidatePaths(res *scanResult) []string {
	paths := make([]string, 0, len(res.candidates))
	for _, c := range res.candidates {
		paths = append(paths, c.path)
	}
	return paths
}

func TestScanTreeCollectsMediaInOrder(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "zoo.jpg"), []byte("z"))
	mustWrite(t, filepath.Join(root, "albums", "beach.png"), []byte("b"))
	mustWrite(t, filepath.Join(root, "albums", "clip.mp4"), []byte("c"))
	mustWrite(t, filepath.Join(root, "notes.txt"), []byte("not media"))
	mustWrite(t, filepath.Join(root, "albums", "readme.md"), []byte("not media"))

	res, err := scanTree(context.Background(), 1, root)
	if err != nil {
		t.Fatalf("scanTree: %v", err)
	}

	want := []string{
		filepath.Join(root, "albums", "beach.png"),
		filepath.Join(root, "albums", "clip.mp4"),
		filepath.Join(root, "zoo.jpg"),
	}
	got := candidatePaths(res)
	if len(got) != len(want) {
		t.Fatalf("candidates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestScanTreeRecordsSizeAndModTime(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, "photo.jpg")
	mustWrite(t, path, []byte("0123456789"))

	res, err := scanTree(context.Background(), 1, root)
	if err != nil {
		t.Fatalf("scanTree: %v", err)
	}
	if len(res.candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(res.candidates))
	}

	c := res.candidates[0]
	if c.size != 10 {
		t.Errorf("size = %d, want 10", c.size)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !c.modTime.Equal(info.ModTime().UTC()) {
		t.Errorf("modTime = %v, want %v", c.modTime, info.ModTime().UTC())
	}
}

func TestScanTreeSkipsHidden(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "visible.jpg"), []byte("v"))
	mustWrite(t, filepath.Join(root, ".thumbnails", "cached.jpg"), []byte("h"))
	mustWrite(t, filepath.Join(root, ".DS_Store"), []byte("h"))

	res, err := scanTree(context.Background(), 1, root)
	if err != nil {
		t.Fatalf("scanTree: %v", err)
	}
	got := candidatePaths(res)
	if len(got) != 1 || got[0] != filepath.Join(root, "visible.jpg") {
		t.Errorf("candidates = %v, want only visible.jpg", got)
	}
}

func TestScanTreeSkipsSymlinkCycle(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	sub := filepath.Join(root, "albums")
	mustWrite(t, filepath.Join(sub, "photo.jpg"), []byte("p"))
	if err := os.Symlink(root, filepath.Join(sub, "loop")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	res, err := scanTree(context.Background(), 1, root)
	if err != nil {
		t.Fatalf("scanTree: %v", err)
	}
	if res.cyclesSkipped == 0 {
		t.Error("cyclesSkipped = 0, want at least 1")
	}
	got := candidatePaths(res)
	if len(got) != 1 {
		t.Errorf("candidates = %v, want exactly one photo despite the cycle", got)
	}
}

func TestScanTreeFollowsSymlinkedDir(t *testing.T) {
	t.Parallel()

	outside := t.TempDir()
	mustWrite(t, filepath.Join(outside, "linked.jpg"), []byte("l"))

	root := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "shared")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	res, err := scanTree(context.Background(), 1, root)
	if err != nil {
		t.Fatalf("scanTree: %v", err)
	}
	got := candidatePaths(res)
	if len(got) != 1 || got[0] != filepath.Join(root, "shared", "linked.jpg") {
		t.Errorf("candidates = %v, want the linked photo", got)
	}
}

func TestScanTreeMissingRoot(t *testing.T) {
	t.Parallel()

	_, err := scanTree(context.Background(), 1, filepath.Join(t.TempDir(), "gone"))
	if !errors.Is(err, ErrRootGone) {
		t.Errorf("err = %v, want ErrRootGone", err)
	}
}

func TestScanTreeRootIsFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, "file.jpg")
	mustWrite(t, path, []byte("f"))

	_, err := scanTree(context.Background(), 1, path)
	if !errors.Is(err, ErrRootGone) {
		t.Errorf("err = %v, want ErrRootGone", err)
	}
}

func TestScanTreeCancelled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.jpg"), []byte("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := scanTree(ctx, 1, root); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
