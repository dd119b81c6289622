package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/overdrive/internal/track"
)

func oval(t *testing.T) *track.Roadmap {
	t.Helper()
	rm := track.NewRoadmap()
	for _, id := range []int{33, 17, 18, 36, 20, 23, 34} {
		require.NoError(t, rm.Add(id, 0, false))
	}
	require.True(t, rm.IsComplete())
	return rm
}

func TestOutline(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Outline(track.NewRoadmap()))

	open := track.NewRoadmap()
	require.NoError(t, open.Add(36, 0, false))
	first := open.List()[0]
	entry, exit := first.WorldEntry(), first.WorldExit()
	want := []Point{
		{X: entry.X(), Y: entry.Y(), Label: "1:straight"},
		{X: exit.X(), Y: exit.Y()},
	}
	if diff := cmp.Diff(want, Outline(open), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Outline mismatch (-want +got):\n%s", diff)
	}

	pts := Outline(oval(t))
	require.Len(t, pts, 8)
	assert.Equal(t, "1:start", pts[0].Label)
	assert.Equal(t, "7:finish", pts[6].Label)
	assert.Equal(t, pts[0].X, pts[7].X)
	assert.Equal(t, pts[0].Y, pts[7].Y)
}

func TestPlotPNG(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, PlotPNG(&buf, oval(t), "oval"))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
	assert.Equal(t, img.Bounds().Dx(), img.Bounds().Dy())

	assert.ErrorIs(t, PlotPNG(&buf, track.NewRoadmap(), "empty"), ErrEmptyRoadmap)
}

func TestChartHTML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, ChartHTML(&buf, oval(t), "oval"))
	html := buf.String()
	assert.Contains(t, html, "<html>")
	assert.Contains(t, html, "centerline")
	assert.Contains(t, html, "pieces=7 complete=true")

	assert.ErrorIs(t, ChartHTML(&buf, track.NewRoadmap(), "empty"), ErrEmptyRoadmap)
}
