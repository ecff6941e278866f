package scanner

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"imagematch/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		p := filepath.Join(root, r)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

func rels(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		r, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(r))
	}
	return out
}

func TestScanFindsImagesRecursively(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "b.png", "a.jpg", "notes.txt", "sub/deep/c.webp", "sub/d.tiff", "e.gif", "f.bmp", "g.jpeg")

	files, err := Scan(root, ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.png", "e.gif", "f.bmp", "g.jpeg", "sub/d.tiff", "sub/deep/c.webp"}, rels(t, root, files))
	for _, f := range files {
		assert.True(t, filepath.IsAbs(f))
	}
}

func TestScanExtensionIsCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "UPPER.JPG", "Mixed.PnG", "skip.heic")

	files, err := Scan(root, ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Mixed.PnG", "UPPER.JPG"}, rels(t, root, files))
}

func TestScanDedupSiblingsDeterministic(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "photo.png", "photo.jpg", "photo.webp", "other/photo.png")

	for i := 0; i < 3; i++ {
		files, err := Scan(root, ScanOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"other/photo.png", "photo.jpg"}, rels(t, root, files))
	}
}

func TestScanExcludesSubtrees(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"keep.jpg",
		"node_modules/pkg/icon.png",
		"node_modules2/ok.png",
		"web/.nuxt/dist/a/b/c/d/deep.jpg",
		"web/.nuxt/other.jpg",
	)

	files, err := Scan(root, ScanOptions{ExcludedDirs: []string{"node_modules", "web/.nuxt/dist"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.jpg", "node_modules2/ok.png", "web/.nuxt/other.jpg"}, rels(t, root, files))
}

func TestScanExcludesAbsoluteTargetDir(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "corpus/a.jpg", "targets/t.jpg")

	files, err := Scan(root, ScanOptions{ExcludedDirs: []string{filepath.Join(root, "targets")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"corpus/a.jpg"}, rels(t, root, files))
}

func TestScanCustomExtensions(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a.jpg", "b.png")

	files, err := Scan(root, ScanOptions{Extensions: []string{"PNG"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.png"}, rels(t, root, files))
}

func TestScanEmptyDirIsNotNil(t *testing.T) {
	files, err := Scan(t.TempDir(), ScanOptions{})
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)
}

func TestScanMissingRoot(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "nope"), ScanOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestScanRootIsFile(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a.jpg")
	_, err := Scan(filepath.Join(root, "a.jpg"), ScanOptions{})
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestIsExcludedRespectsBoundaries(t *testing.T) {
	ex := []string{filepath.FromSlash("/data/node_modules")}
	assert.True(t, isExcluded(filepath.FromSlash("/data/node_modules"), ex))
	assert.True(t, isExcluded(filepath.FromSlash("/data/node_modules/a/b"), ex))
	assert.False(t, isExcluded(filepath.FromSlash("/data/node_modules2"), ex))
	assert.False(t, isExcluded(filepath.FromSlash("/data"), ex))
}

func TestDefaultExtensionSet(t *testing.T) {
	set := newExtensionSet(nil)
	assert.True(t, set.matches("/x/y.WebP"))
	assert.True(t, set.matches("/x/Y.JPEG"))
	assert.False(t, set.matches("/x/y.cr3"))
	assert.Len(t, set, len(config.DefaultExtensions))
}

func TestProgressTrackerCounts(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressTracker(3, "Targets", nil)
	p.Record("/a", nil)
	p.Record("/b", errors.New("bad"))
	p.Record("/c", nil)
	p.Stop()

	processed, failed := p.Counts()
	assert.Equal(t, 3, processed)
	assert.Equal(t, 1, failed)

	p.PrintCompletionStats(&buf, "Targets")
	assert.Contains(t, buf.String(), "processed 3 images")
	assert.Contains(t, buf.String(), "1 errors")
}

func TestScanExclusionMatchesWholeComponents(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "node_modules/a.png", "node_modules_old/b.png", "src/node_modules/c.png")

	got, err := Scan(root, ScanOptions{ExcludedDirs: []string{"node_modules"}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "node_modules_old", "b.png"),
		filepath.Join(root, "src", "node_modules", "c.png"),
	}, got)
}
