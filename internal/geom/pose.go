// Package geom provides the planar pose used to place track pieces relative
// to one another.
package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Pose is an immutable 2D position with a heading in degrees. The heading is
// always stored in [0, 360).
type Pose struct {
	pos     r2.Vec
	heading float64
}

// At returns the pose at (x, y) with the given heading in degrees.
func At(x, y, heading float64) Pose {
	return Pose{pos: r2.Vec{X: x, Y: y}, heading: normalizeHeading(heading)}
}

// Origin is the identity pose.
var Origin = Pose{}

func normalizeHeading(deg float64) float64 {
	h := math.Mod(math.Mod(deg, 360)+360, 360)
	if h == 360 {
		// math.Mod of a tiny negative value can round up to 360
		h = 0
	}
	return h
}

func (p Pose) X() float64       { return p.pos.X }
func (p Pose) Y() float64       { return p.pos.Y }
func (p Pose) Heading() float64 { return p.heading }

// Vec returns the position component.
func (p Pose) Vec() r2.Vec { return p.pos }

// Translate moves the pose by (dx, dy) keeping its heading.
func (p Pose) Translate(dx, dy float64) Pose {
	return Pose{pos: r2.Add(p.pos, r2.Vec{X: dx, Y: dy}), heading: p.heading}
}

// Rotate turns the pose by angle degrees around the origin. Positive angles
// turn clockwise in a y-up frame, which is the track's screen convention.
func (p Pose) Rotate(angle float64) Pose {
	return Pose{
		pos:     r2.Rotate(p.pos, -angle*math.Pi/180, r2.Vec{}),
		heading: normalizeHeading(p.heading + angle),
	}
}

// Reverse returns the same position facing the opposite way.
func (p Pose) Reverse() Pose {
	return Pose{pos: p.pos, heading: normalizeHeading(p.heading + 180)}
}

// Transform interprets other as expressed in p's frame and returns it in the
// parent frame: other is rotated by p's heading and then translated by p's
// position.
func (p Pose) Transform(other Pose) Pose {
	return other.Rotate(p.heading).Translate(p.pos.X, p.pos.Y)
}

// InvTransform is the inverse of Transform: it expresses other, given in the
// parent frame, in p's frame. p.InvTransform(p.Transform(q)) == q.
func (p Pose) InvTransform(other Pose) Pose {
	return p.Inverse().Transform(other)
}

// Inverse returns the pose q with p.Transform(q) == Origin.
func (p Pose) Inverse() Pose {
	back := Pose{pos: r2.Scale(-1, p.pos)}.Rotate(-p.heading)
	return Pose{pos: back.pos, heading: normalizeHeading(-p.heading)}
}

// Distance is the Euclidean distance between the two positions. Headings are
// ignored.
func (p Pose) Distance(other Pose) float64 {
	return r2.Norm(r2.Sub(p.pos, other.pos))
}

// ApproxEqual reports whether both poses agree within tol on each coordinate
// and on heading (modulo 360).
func (p Pose) ApproxEqual(other Pose, tol float64) bool {
	if math.Abs(p.pos.X-other.pos.X) > tol || math.Abs(p.pos.Y-other.pos.Y) > tol {
		return false
	}
	d := math.Abs(p.heading - other.heading)
	return d <= tol || math.Abs(d-360) <= tol
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f°)", p.pos.X, p.pos.Y, p.heading)
}
