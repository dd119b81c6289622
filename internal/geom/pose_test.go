package geom

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAtNormalizesHeading(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{-90, 270},
		{450, 90},
		{-720, 0},
		{179.5, 179.5},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, At(0, 0, c.in).Heading(), 1e-12, "heading %v", c.in)
	}
}

func TestRotateAndTranslate(t *testing.T) {
	t.Parallel()

	p := At(280, 0, 0).Rotate(90)
	assert.InDelta(t, 0, p.X(), 1e-9)
	assert.InDelta(t, -280, p.Y(), 1e-9)
	assert.InDelta(t, 90, p.Heading(), 1e-9)

	q := At(1, 2, 45).Translate(3, -4)
	assert.Equal(t, 4.0, q.X())
	assert.Equal(t, -2.0, q.Y())
	assert.Equal(t, 45.0, q.Heading())
}

func TestReverse(t *testing.T) {
	t.Parallel()

	p := At(5, 6, 270).Reverse()
	assert.Equal(t, 5.0, p.X())
	assert.Equal(t, 6.0, p.Y())
	assert.InDelta(t, 90, p.Heading(), 1e-12)
	assert.True(t, p.Reverse().ApproxEqual(At(5, 6, 270), 1e-12))
}

func TestTransformComposesFrames(t *testing.T) {
	t.Parallel()

	frame := At(0, 0, 180)
	got := frame.Transform(At(-280, 0, 0))
	assert.True(t, got.ApproxEqual(At(280, 0, 180), 1e-9), "got %v", got)
}

func TestInvTransformIsInverse(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		p := At(rng.Float64()*2000-1000, rng.Float64()*2000-1000, rng.Float64()*720-360)
		q := At(rng.Float64()*2000-1000, rng.Float64()*2000-1000, rng.Float64()*720-360)

		back := p.InvTransform(p.Transform(q))
		assert.True(t, back.ApproxEqual(q, 1e-9), "p=%v q=%v back=%v", p, q, back)

		fwd := p.Transform(p.InvTransform(q))
		assert.True(t, fwd.ApproxEqual(q, 1e-9), "p=%v q=%v fwd=%v", p, q, fwd)
	}
}

func TestInverse(t *testing.T) {
	t.Parallel()

	p := At(12, -7, 33)
	assert.True(t, p.Transform(p.Inverse()).ApproxEqual(Origin, 1e-9))
	assert.True(t, p.Inverse().Transform(p).ApproxEqual(Origin, 1e-9))
}

func TestDistance(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 5, At(0, 0, 0).Distance(At(3, 4, 123)), 1e-12)
	assert.Equal(t, 0.0, At(1, 1, 0).Distance(At(1, 1, 90)))
}
