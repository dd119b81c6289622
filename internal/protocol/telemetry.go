package protocol

// ParsingFlagReverse is set in PositionUpdate.ParsingFlags when the vehicle
// drives against the piece's natural direction.
const ParsingFlagReverse uint8 = 0x40

// PositionUpdate is emitted whenever the vehicle reads a location code.
type PositionUpdate struct {
	LocationID                 uint8
	PieceID                    uint8
	Offset                     float32
	Speed                      uint16
	ParsingFlags               uint8
	LastRecvLaneChangeID       uint8
	LastExecLaneChangeID       uint8
	LastDesiredHorizontalSpeed uint16
	LastDesiredSpeed           uint16
}

func (*PositionUpdate) Type() Type { return TypePositionUpdate }

// Reverse reports whether the vehicle is driving the piece backwards.
func (m *PositionUpdate) Reverse() bool {
	return m.ParsingFlags&ParsingFlagReverse != 0
}

func (m *PositionUpdate) appendPayload(w *payloadWriter) {
	w.u8(m.LocationID)
	w.u8(m.PieceID)
	w.f32(m.Offset)
	w.u16(m.Speed)
	w.u8(m.ParsingFlags)
	w.u8(m.LastRecvLaneChangeID)
	w.u8(m.LastExecLaneChangeID)
	w.u16(m.LastDesiredHorizontalSpeed)
	w.u16(m.LastDesiredSpeed)
}

func (m *PositionUpdate) parsePayload(r *payloadReader) {
	m.LocationID = r.u8()
	m.PieceID = r.u8()
	m.Offset = r.f32()
	m.Speed = r.u16()
	m.ParsingFlags = r.u8()
	m.LastRecvLaneChangeID = r.u8()
	m.LastExecLaneChangeID = r.u8()
	m.LastDesiredHorizontalSpeed = r.u16()
	m.LastDesiredSpeed = r.u16()
}

// transitionTailWithDirection is the number of bytes left after the offset
// field when the firmware includes the driving direction byte.
const transitionTailWithDirection = 11

// TransitionUpdate is emitted when the vehicle crosses onto a new piece.
// Older firmware omits the driving direction; HasDrivingDirection records
// which form was received so it is re-encoded the same way.
type TransitionUpdate struct {
	PieceID                    uint8
	PrevPieceID                uint8
	Offset                     float32
	HasDrivingDirection        bool
	DrivingDirection           uint8
	LastRecvLaneChangeID       uint8
	LastExecLaneChangeID       uint8
	LastDesiredHorizontalSpeed uint16
	LastDesiredSpeed           uint16
	UphillCounter              uint8
	DownhillCounter            uint8
	LeftWheelDistance          uint8
	RightWheelDistance         uint8
}

func (*TransitionUpdate) Type() Type { return TypeTransitionUpdate }

func (m *TransitionUpdate) appendPayload(w *payloadWriter) {
	w.u8(m.PieceID)
	w.u8(m.PrevPieceID)
	w.f32(m.Offset)
	if m.HasDrivingDirection {
		w.u8(m.DrivingDirection)
	}
	w.u8(m.LastRecvLaneChangeID)
	w.u8(m.LastExecLaneChangeID)
	w.u16(m.LastDesiredHorizontalSpeed)
	w.u16(m.LastDesiredSpeed)
	w.u8(m.UphillCounter)
	w.u8(m.DownhillCounter)
	w.u8(m.LeftWheelDistance)
	w.u8(m.RightWheelDistance)
}

func (m *TransitionUpdate) parsePayload(r *payloadReader) {
	m.PieceID = r.u8()
	m.PrevPieceID = r.u8()
	m.Offset = r.f32()
	if r.err == nil && r.remaining() == transitionTailWithDirection {
		m.HasDrivingDirection = true
		m.DrivingDirection = r.u8()
	}
	m.LastRecvLaneChangeID = r.u8()
	m.LastExecLaneChangeID = r.u8()
	m.LastDesiredHorizontalSpeed = r.u16()
	m.LastDesiredSpeed = r.u16()
	m.UphillCounter = r.u8()
	m.DownhillCounter = r.u8()
	m.LeftWheelDistance = r.u8()
	m.RightWheelDistance = r.u8()
}

type IntersectionUpdate struct {
	PieceID          uint8
	Offset           float32
	DrivingDirection uint8
	Code             uint8
	Turn             uint8
	Exiting          bool
}

func (*IntersectionUpdate) Type() Type { return TypeIntersectionUpdate }

func (m *IntersectionUpdate) appendPayload(w *payloadWriter) {
	w.u8(m.PieceID)
	w.f32(m.Offset)
	w.u8(m.DrivingDirection)
	w.u8(m.Code)
	w.u8(m.Turn)
	w.boolean(m.Exiting)
}

func (m *IntersectionUpdate) parsePayload(r *payloadReader) {
	m.PieceID = r.u8()
	m.Offset = r.f32()
	m.DrivingDirection = r.u8()
	m.Code = r.u8()
	m.Turn = r.u8()
	m.Exiting = r.boolean()
}

// Delocalized means the vehicle lost the track.
type Delocalized struct{ emptyPayload }

func (*Delocalized) Type() Type { return TypeDelocalized }

type OffsetUpdate struct {
	Offset       float32
	LaneChangeID uint8
}

func (*OffsetUpdate) Type() Type { return TypeOffsetUpdate }

func (m *OffsetUpdate) appendPayload(w *payloadWriter) {
	w.f32(m.Offset)
	w.u8(m.LaneChangeID)
}

func (m *OffsetUpdate) parsePayload(r *payloadReader) {
	m.Offset = r.f32()
	m.LaneChangeID = r.u8()
}

// VehicleInfo reports whether the vehicle sits on the track and whether it
// is charging. The two trailing bytes have no known meaning and are kept
// as received.
type VehicleInfo struct {
	OnTrack  bool
	Charging bool
	Reserved [2]byte
}

func (*VehicleInfo) Type() Type { return TypeVehicleInfo }

func (m *VehicleInfo) appendPayload(w *payloadWriter) {
	w.boolean(m.OnTrack)
	w.boolean(m.Charging)
	w.u8(m.Reserved[0])
	w.u8(m.Reserved[1])
}

func (m *VehicleInfo) parsePayload(r *payloadReader) {
	m.OnTrack = r.boolean()
	m.Charging = r.boolean()
	m.Reserved[0] = r.u8()
	m.Reserved[1] = r.u8()
}
