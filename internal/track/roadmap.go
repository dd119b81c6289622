package track

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/banshee-data/overdrive/internal/geom"
	"github.com/banshee-data/overdrive/internal/monitoring"
)

// ErrRoadmapComplete is returned when a section is added to a closed loop.
var ErrRoadmapComplete = errors.New("track: roadmap already complete")

// DefaultClosureTolerance is the distance in millimetres under which the
// last exit and the first entry count as the same point.
const DefaultClosureTolerance = 1.0

// anchorPose is the world pose given to the first piece of every roadmap.
var anchorPose = geom.At(0, 0, 180)

const none = -1

// node is one section record in the roadmap arena. prev and next are
// stored in the orientation of the underlying axis; a reversed section
// reads them swapped.
type node struct {
	sec   Section
	world geom.Pose
	prev  int
	next  int
}

// Roadmap is the graph of sections a vehicle has driven, in the order it
// drove them. It is not safe for concurrent use.
type Roadmap struct {
	nodes     []node
	anchor    int
	current   int
	saved     int
	tolerance float64
}

// NewRoadmap returns an empty roadmap using DefaultClosureTolerance.
func NewRoadmap() *Roadmap {
	return &Roadmap{anchor: none, current: none, saved: none, tolerance: DefaultClosureTolerance}
}

// Clone returns an independent copy of r.
func (r *Roadmap) Clone() *Roadmap {
	c := *r
	c.nodes = slices.Clone(r.nodes)
	return &c
}

// SetClosureTolerance changes the loop closure distance. Non-positive
// values restore the default.
func (r *Roadmap) SetClosureTolerance(tol float64) {
	if tol <= 0 {
		tol = DefaultClosureTolerance
	}
	r.tolerance = tol
}

func (r *Roadmap) prevOf(i int) int {
	if r.nodes[i].sec.reversed {
		return r.nodes[i].next
	}
	return r.nodes[i].prev
}

func (r *Roadmap) nextOf(i int) int {
	if r.nodes[i].sec.reversed {
		return r.nodes[i].prev
	}
	return r.nodes[i].next
}

func (r *Roadmap) setPrev(i, j int) {
	if r.nodes[i].sec.reversed {
		r.nodes[i].next = j
		return
	}
	r.nodes[i].prev = j
}

func (r *Roadmap) setNext(i, j int) {
	if r.nodes[i].sec.reversed {
		r.nodes[i].prev = j
		return
	}
	r.nodes[i].next = j
}

func (r *Roadmap) worldEntry(i int) geom.Pose {
	return r.nodes[i].world.Transform(r.nodes[i].sec.Entry())
}

func (r *Roadmap) worldExit(i int) geom.Pose {
	return r.nodes[i].world.Transform(r.nodes[i].sec.Exit())
}

// connect links a to b and places b's piece so its entry meets a's exit.
func (r *Roadmap) connect(a, b int) {
	r.setNext(a, b)
	r.setPrev(b, a)
	r.nodes[b].world = r.worldExit(a).Transform(r.nodes[b].sec.Entry().Inverse())
}

// AddSection appends s after the last section. The first section anchors
// the roadmap at the origin facing 180°. When the new section's exit meets
// the anchor's entry the loop is closed and the roadmap is complete.
func (r *Roadmap) AddSection(s Section) error {
	if s.def == nil {
		return fmt.Errorf("%w: zero section", ErrUnknownPiece)
	}
	if r.IsComplete() {
		return ErrRoadmapComplete
	}
	r.nodes = append(r.nodes, node{sec: s, prev: none, next: none})
	i := len(r.nodes) - 1
	if r.current == none {
		r.anchor, r.current = i, i
		r.nodes[i].world = anchorPose
		return nil
	}

	// Closing the loop must not move the anchor, so the anchor's pose is
	// restored after connecting back to it.
	r.connect(r.current, i)
	r.current = i
	if r.worldExit(i).Distance(r.worldEntry(r.anchor)) < r.tolerance {
		world := r.nodes[r.anchor].world
		r.connect(i, r.anchor)
		r.nodes[r.anchor].world = world
	}
	return nil
}

// Add resolves a reported piece and appends it. Unknown pieces are logged
// and leave the roadmap untouched.
func (r *Roadmap) Add(pieceID, locationID int, reverse bool) error {
	s, err := NewSection(pieceID, locationID, reverse)
	if err != nil {
		monitoring.Logf("track: skipping piece %d location %d reverse %t: %v", pieceID, locationID, reverse, err)
		return err
	}
	return r.AddSection(s)
}

// IsComplete reports whether the loop has been closed.
func (r *Roadmap) IsComplete() bool {
	return r.anchor != none && r.prevOf(r.anchor) != none
}

// Placed is a section together with the world pose of its piece.
type Placed struct {
	Section
	Pose geom.Pose
}

// WorldEntry is the section's entry point in world coordinates.
func (p Placed) WorldEntry() geom.Pose { return p.Pose.Transform(p.Entry()) }

// WorldExit is the section's exit point in world coordinates.
func (p Placed) WorldExit() geom.Pose { return p.Pose.Transform(p.Exit()) }

// Pieces yields the sections from the anchor onward, stopping at the end of
// an open roadmap or when the walk returns to the anchor. Each call starts
// a fresh walk.
func (r *Roadmap) Pieces() iter.Seq[Placed] {
	return func(yield func(Placed) bool) {
		if r.anchor == none {
			return
		}
		for i := r.anchor; ; {
			if !yield(Placed{Section: r.nodes[i].sec, Pose: r.nodes[i].world}) {
				return
			}
			i = r.nextOf(i)
			if i == none || i == r.anchor {
				return
			}
		}
	}
}

// List returns the sections from the anchor onward.
func (r *Roadmap) List() []Placed {
	list := make([]Placed, 0, len(r.nodes))
	for p := range r.Pieces() {
		list = append(list, p)
	}
	return list
}

// Len is the number of sections in the roadmap.
func (r *Roadmap) Len() int {
	n := 0
	for range r.Pieces() {
		n++
	}
	return n
}

// Normalize moves the anchor to the first start piece, remembering the
// previous anchor for DeNormalize. Only a closed loop can be re-anchored;
// an open chain and a roadmap without a start piece keep their anchor.
// Calling Normalize twice without DeNormalize keeps the first saved anchor.
func (r *Roadmap) Normalize() {
	if !r.IsComplete() || r.saved != none {
		return
	}
	r.saved = r.anchor
	for i := r.anchor; ; {
		if r.nodes[i].sec.Kind() == KindStart {
			r.anchor = i
			return
		}
		i = r.nextOf(i)
		if i == none || i == r.saved {
			return
		}
	}
}

// DeNormalize restores the anchor saved by Normalize.
func (r *Roadmap) DeNormalize() {
	if r.saved == none {
		return
	}
	r.anchor = r.saved
	r.saved = none
}

// Normalized reports whether Normalize is in effect.
func (r *Roadmap) Normalized() bool {
	return r.saved != none
}

// Reverse flips the driving order: the last section becomes the anchor and
// every link is swapped. Piece geometry is left as recorded, so the layout
// of a reversed roadmap is mirrored.
func (r *Roadmap) Reverse() {
	if r.anchor == none {
		return
	}
	old := r.anchor
	last := r.prevOf(old)
	if last == none {
		last = r.current
	}
	for i := range r.nodes {
		r.nodes[i].prev, r.nodes[i].next = r.nodes[i].next, r.nodes[i].prev
	}
	r.anchor = last
	r.current = old
}

// Equal reports whether both roadmaps hold the same sequence of piece
// kinds from their anchors. Curves and intersections must also be driven
// along the same axis in the same direction.
func (r *Roadmap) Equal(other *Roadmap) bool {
	if r == other {
		return true
	}
	if other == nil {
		return false
	}
	a, b := r.List(), other.List()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind() != b[i].Kind() || !a[i].sameOrientation(b[i].Section) {
			return false
		}
	}
	return true
}

// Step is one reported piece, enough to rebuild a roadmap with Replay.
type Step struct {
	PieceID    int  `json:"piece_id"`
	LocationID int  `json:"location_id"`
	Reverse    bool `json:"reverse"`
}

// Steps returns the reported pieces in the order they were added.
func (r *Roadmap) Steps() []Step {
	steps := make([]Step, len(r.nodes))
	for i, n := range r.nodes {
		steps[i] = Step{PieceID: n.sec.PieceID, LocationID: n.sec.LocationID, Reverse: n.sec.Reverse}
	}
	return steps
}

// Replay adds each step in order, stopping at the first error.
func (r *Roadmap) Replay(steps []Step) error {
	for i, s := range steps {
		if err := r.Add(s.PieceID, s.LocationID, s.Reverse); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// String lists the piece kinds from the anchor, one numbered line each.
func (r *Roadmap) String() string {
	var sb strings.Builder
	i := 1
	for p := range r.Pieces() {
		fmt.Fprintf(&sb, "%d: %s\n", i, p.Kind())
		i++
	}
	return sb.String()
}
