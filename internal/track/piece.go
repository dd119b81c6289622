// Package track reconstructs the layout of a closed track from the pieces a
// vehicle reports while driving it.
package track

import (
	"errors"
	"fmt"
	"slices"

	"github.com/banshee-data/overdrive/internal/geom"
)

var (
	// ErrUnknownPiece is returned for a piece id no catalog entry claims.
	ErrUnknownPiece = errors.New("track: unknown piece")
	// ErrInvalidLocation is returned when a location id does not map to
	// any traversal of the piece.
	ErrInvalidLocation = errors.New("track: invalid location")
)

// Kind is the shape class of a track piece.
type Kind int

const (
	KindStraight Kind = iota
	KindCurve
	KindIntersection
	KindStart
	KindFinish
	KindJump
	KindLanding
	KindPowerzone
)

var kindNames = [...]string{"straight", "curve", "intersection", "start", "finish", "jump", "landing", "powerzone"}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if name == string(text) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("track: unknown piece kind %q", text)
}

// oriented reports whether two pieces of this kind can differ by the way
// they are traversed, so equality must look at the traversal too.
func (k Kind) oriented() bool {
	return k == KindCurve || k == KindIntersection
}

// Axis is one drivable path through a piece, in the piece's local frame.
type Axis struct {
	Entry geom.Pose
	Exit  geom.Pose
}

// PieceDefinition describes every piece sharing one shape. Definitions are
// immutable and shared.
type PieceDefinition struct {
	Kind Kind
	// IDs is sorted ascending.
	IDs  []int
	Axes []Axis
	// locate picks the axis and traversal direction for a location.
	locate func(locationID int, reverse bool) (axis int, reversed bool, err error)
}

func straightAxis(half float64) []Axis {
	return []Axis{{Entry: geom.At(-half, 0, 0), Exit: geom.At(half, 0, 0)}}
}

func singleAxis(_ int, reverse bool) (int, bool, error) {
	return 0, reverse, nil
}

const (
	intersectionH = 0
	intersectionV = 1
)

// intersectionAxis maps a location id to one of the two crossing roads.
// Each road has four location codes per direction, laid out in blocks of
// four: H, V, H backwards, V backwards.
func intersectionAxis(locationID int, reverse bool) (int, bool, error) {
	switch locationID / 4 {
	case 0:
		return intersectionH, reverse, nil
	case 1:
		return intersectionV, reverse, nil
	case 2:
		return intersectionH, !reverse, nil
	case 3:
		return intersectionV, !reverse, nil
	}
	return 0, false, fmt.Errorf("%w: intersection location %d", ErrInvalidLocation, locationID)
}

const pieceLength = 280

// catalog is consulted in order; the first entry claiming an id wins.
var catalog = []*PieceDefinition{
	{Kind: KindStraight, IDs: []int{36, 39, 40, 48, 51}, Axes: straightAxis(pieceLength), locate: singleAxis},
	{Kind: KindCurve, IDs: []int{17, 18, 20, 23, 24, 27}, Axes: []Axis{{
		Entry: geom.At(-pieceLength, 0, 0),
		Exit:  geom.At(0, -pieceLength, 90),
	}}, locate: singleAxis},
	{Kind: KindIntersection, IDs: []int{10}, Axes: []Axis{
		intersectionH: {Entry: geom.At(-pieceLength, 0, 0), Exit: geom.At(pieceLength, 0, 0)},
		intersectionV: {Entry: geom.At(0, -pieceLength, -90), Exit: geom.At(0, pieceLength, -90)},
	}, locate: intersectionAxis},
	{Kind: KindStart, IDs: []int{33}, Axes: straightAxis(110), locate: singleAxis},
	{Kind: KindFinish, IDs: []int{34}, Axes: straightAxis(170), locate: singleAxis},
	{Kind: KindJump, IDs: []int{58}, Axes: straightAxis(pieceLength), locate: singleAxis},
	{Kind: KindLanding, IDs: []int{63}, Axes: straightAxis(pieceLength), locate: singleAxis},
	{Kind: KindPowerzone, IDs: []int{57}, Axes: straightAxis(pieceLength), locate: singleAxis},
}

// Lookup returns the definition claiming pieceID.
func Lookup(pieceID int) (*PieceDefinition, error) {
	for _, def := range catalog {
		if _, ok := slices.BinarySearch(def.IDs, pieceID); ok {
			return def, nil
		}
	}
	return nil, fmt.Errorf("%w: id %d", ErrUnknownPiece, pieceID)
}

// Definitions returns the catalog in lookup order.
func Definitions() []*PieceDefinition {
	return slices.Clone(catalog)
}

// Section is one traversal of one axis of a piece as reported by a vehicle.
// Sections are values; links between them belong to the Roadmap they are
// added to.
type Section struct {
	def        *PieceDefinition
	axis       int
	reversed   bool
	PieceID    int
	LocationID int
	// Reverse is the flag the vehicle reported, before any per-piece
	// remapping.
	Reverse bool
}

// NewSection resolves the traversal a vehicle reports at (pieceID,
// locationID, reverse).
func NewSection(pieceID, locationID int, reverse bool) (Section, error) {
	def, err := Lookup(pieceID)
	if err != nil {
		return Section{}, err
	}
	axis, reversed, err := def.locate(locationID, reverse)
	if err != nil {
		return Section{}, err
	}
	return Section{
		def:        def,
		axis:       axis,
		reversed:   reversed,
		PieceID:    pieceID,
		LocationID: locationID,
		Reverse:    reverse,
	}, nil
}

func (s Section) Kind() Kind { return s.def.Kind }

// Axis is the index of the traversed axis within the piece definition.
func (s Section) Axis() int { return s.axis }

// Reversed reports whether the axis is driven from its exit to its entry.
func (s Section) Reversed() bool { return s.reversed }

// Entry is where the vehicle enters the piece, in the piece's frame.
func (s Section) Entry() geom.Pose {
	a := s.def.Axes[s.axis]
	if s.reversed {
		return a.Exit.Reverse()
	}
	return a.Entry
}

// Exit is where the vehicle leaves the piece, in the piece's frame.
func (s Section) Exit() geom.Pose {
	a := s.def.Axes[s.axis]
	if s.reversed {
		return a.Entry.Reverse()
	}
	return a.Exit
}

// Flip returns the same axis driven the other way.
func (s Section) Flip() Section {
	s.reversed = !s.reversed
	return s
}

// sameOrientation reports whether two sections of the same kind are
// traversed the same way.
func (s Section) sameOrientation(o Section) bool {
	if !s.def.Kind.oriented() {
		return true
	}
	return s.axis == o.axis && s.reversed == o.reversed
}
