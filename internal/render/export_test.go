package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/overdrive/internal/fsutil"
	"github.com/banshee-data/overdrive/internal/track"
)

func TestExport(t *testing.T) {
	t.Parallel()

	fsys := fsutil.NewMemoryFileSystem()
	paths, err := Export(fsys, "/plots/2026", "../kitchen oval", oval(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"/plots/2026/kitchen_oval.png", "/plots/2026/kitchen_oval.html"}, paths)
	assert.Equal(t, paths[1:], fsys.Files()[:1])

	data, err := fsys.ReadFile(paths[0])
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	html, err := fsys.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Contains(t, string(html), "../kitchen oval")
}

func TestExportEmpty(t *testing.T) {
	t.Parallel()

	fsys := fsutil.NewMemoryFileSystem()
	_, err := Export(fsys, "/plots", "empty", track.NewRoadmap())
	assert.ErrorIs(t, err, ErrEmptyRoadmap)
	assert.Empty(t, fsys.Files())
	assert.False(t, fsys.Exists("/plots"))
}

func TestExportOS(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	paths, err := Export(fsutil.OSFileSystem{}, dir, "oval", oval(t))
	require.NoError(t, err)
	for _, p := range paths {
		assert.True(t, fsutil.OSFileSystem{}.Exists(p), p)
	}
}
