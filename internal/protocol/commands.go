package protocol

// PingRequest asks the vehicle for a PingResponse.
type PingRequest struct{ emptyPayload }

func (*PingRequest) Type() Type { return TypePingRequest }

type PingResponse struct{ emptyPayload }

func (*PingResponse) Type() Type { return TypePingResponse }

type VersionRequest struct{ emptyPayload }

func (*VersionRequest) Type() Type { return TypeVersionRequest }

type VersionResponse struct {
	Version uint16
}

func (*VersionResponse) Type() Type { return TypeVersionResponse }

func (m *VersionResponse) appendPayload(w *payloadWriter) { w.u16(m.Version) }
func (m *VersionResponse) parsePayload(r *payloadReader)  { m.Version = r.u16() }

type BatteryRequest struct{ emptyPayload }

func (*BatteryRequest) Type() Type { return TypeBatteryRequest }

// BatteryResponse reports the battery level in millivolts.
type BatteryResponse struct {
	MilliVolts uint16
}

func (*BatteryResponse) Type() Type { return TypeBatteryResponse }

func (m *BatteryResponse) appendPayload(w *payloadWriter) { w.u16(m.MilliVolts) }
func (m *BatteryResponse) parsePayload(r *payloadReader)  { m.MilliVolts = r.u16() }

// SetLights switches the simple head/tail lights. Mask is the firmware's
// light mask byte.
type SetLights struct {
	Mask uint8
}

func (*SetLights) Type() Type { return TypeSetLights }

func (m *SetLights) appendPayload(w *payloadWriter) { w.u8(m.Mask) }
func (m *SetLights) parsePayload(r *payloadReader)  { m.Mask = r.u8() }

// SetSpeed sets the target speed (mm/s) and acceleration (mm/s²).
// RespectLimit makes the vehicle honour the track's speed limit.
type SetSpeed struct {
	Speed        int16
	Accel        int16
	RespectLimit bool
}

// NewSetSpeed returns a SetSpeed command that ignores the track speed limit.
func NewSetSpeed(speed, accel int16) *SetSpeed {
	return &SetSpeed{Speed: speed, Accel: accel}
}

func (*SetSpeed) Type() Type { return TypeSetSpeed }

func (m *SetSpeed) appendPayload(w *payloadWriter) {
	w.i16(m.Speed)
	w.i16(m.Accel)
	w.boolean(m.RespectLimit)
}

func (m *SetSpeed) parsePayload(r *payloadReader) {
	m.Speed = r.i16()
	m.Accel = r.i16()
	m.RespectLimit = r.boolean()
}

// ChangeLane moves the vehicle sideways to Offset millimetres from the
// road centre.
type ChangeLane struct {
	HorizontalSpeed uint16
	HorizontalAccel uint16
	Offset          float32
	HopIntent       bool
	Tag             uint8
}

// NewChangeLane returns a lane change with the usual horizontal speed and
// acceleration.
func NewChangeLane(offset float32) *ChangeLane {
	return &ChangeLane{HorizontalSpeed: 300, HorizontalAccel: 300, Offset: offset}
}

func (*ChangeLane) Type() Type { return TypeChangeLane }

func (m *ChangeLane) appendPayload(w *payloadWriter) {
	w.u16(m.HorizontalSpeed)
	w.u16(m.HorizontalAccel)
	w.f32(m.Offset)
	w.boolean(m.HopIntent)
	w.u8(m.Tag)
}

func (m *ChangeLane) parsePayload(r *payloadReader) {
	m.HorizontalSpeed = r.u16()
	m.HorizontalAccel = r.u16()
	m.Offset = r.f32()
	m.HopIntent = r.boolean()
	m.Tag = r.u8()
}

type CancelLaneChange struct{ emptyPayload }

func (*CancelLaneChange) Type() Type { return TypeCancelLaneChange }

// SetOffset tells the vehicle which offset from the road centre it is
// currently driving on.
type SetOffset struct {
	Offset float32
}

func (*SetOffset) Type() Type { return TypeSetOffset }

func (m *SetOffset) appendPayload(w *payloadWriter) { w.f32(m.Offset) }
func (m *SetOffset) parsePayload(r *payloadReader)  { m.Offset = r.f32() }

// Turn types and triggers understood by the firmware.
const (
	TurnNone  uint8 = 0
	TurnLeft  uint8 = 1
	TurnRight uint8 = 2
	TurnUTurn uint8 = 3
	TurnUJump uint8 = 4

	TurnTriggerNextTransition uint8 = 0
	TurnTriggerImmediately    uint8 = 1
)

type Turn struct {
	TurnType uint8
	Trigger  uint8
}

// NewUTurn returns an immediate U-turn.
func NewUTurn() *Turn {
	return &Turn{TurnType: TurnUTurn, Trigger: TurnTriggerImmediately}
}

func (*Turn) Type() Type { return TypeTurn }

func (m *Turn) appendPayload(w *payloadWriter) {
	w.u8(m.TurnType)
	w.u8(m.Trigger)
}

func (m *Turn) parsePayload(r *payloadReader) {
	m.TurnType = r.u8()
	m.Trigger = r.u8()
}

type SetConfig struct {
	SuperCodeMask uint8
	TrackMaterial uint8
}

func (*SetConfig) Type() Type { return TypeSetConfig }

func (m *SetConfig) appendPayload(w *payloadWriter) {
	w.u8(m.SuperCodeMask)
	w.u8(m.TrackMaterial)
}

func (m *SetConfig) parsePayload(r *payloadReader) {
	m.SuperCodeMask = r.u8()
	m.TrackMaterial = r.u8()
}

// SDKMode must be sent with On set before the vehicle accepts any other
// command.
type SDKMode struct {
	On    bool
	Flags uint8
}

// NewSDKMode returns the command that enables SDK mode with the default
// flags.
func NewSDKMode() *SDKMode {
	return &SDKMode{On: true, Flags: 1}
}

func (*SDKMode) Type() Type { return TypeSDKMode }

func (m *SDKMode) appendPayload(w *payloadWriter) {
	w.boolean(m.On)
	w.u8(m.Flags)
}

func (m *SDKMode) parsePayload(r *payloadReader) {
	m.On = r.boolean()
	m.Flags = r.u8()
}
