package protocol

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Type is the one-byte message type tag.
type Type uint8

const (
	TypePingRequest        Type = 0x16
	TypePingResponse       Type = 0x17
	TypeVersionRequest     Type = 0x18
	TypeVersionResponse    Type = 0x19
	TypeBatteryRequest     Type = 0x1a
	TypeBatteryResponse    Type = 0x1b
	TypeSetLights          Type = 0x1d
	TypeSetSpeed           Type = 0x24
	TypeChangeLane         Type = 0x25
	TypeCancelLaneChange   Type = 0x26
	TypePositionUpdate     Type = 0x27
	TypeTransitionUpdate   Type = 0x29
	TypeIntersectionUpdate Type = 0x2a
	TypeDelocalized        Type = 0x2b
	TypeSetOffset          Type = 0x2c
	TypeOffsetUpdate       Type = 0x2d
	TypeTurn               Type = 0x32
	TypeLightsPattern      Type = 0x33
	TypeVehicleInfo        Type = 0x3f
	TypeSetConfig          Type = 0x45
	TypeSDKMode            Type = 0x90
)

var typeNames = map[Type]string{
	TypePingRequest:        "ping_request",
	TypePingResponse:       "ping_response",
	TypeVersionRequest:     "version_request",
	TypeVersionResponse:    "version_response",
	TypeBatteryRequest:     "battery_request",
	TypeBatteryResponse:    "battery_response",
	TypeSetLights:          "set_lights",
	TypeSetSpeed:           "set_speed",
	TypeChangeLane:         "change_lane",
	TypeCancelLaneChange:   "cancel_lane_change",
	TypePositionUpdate:     "position_update",
	TypeTransitionUpdate:   "transition_update",
	TypeIntersectionUpdate: "intersection_update",
	TypeDelocalized:        "delocalized",
	TypeSetOffset:          "set_offset",
	TypeOffsetUpdate:       "offset_update",
	TypeTurn:               "turn",
	TypeLightsPattern:      "lights_pattern",
	TypeVehicleInfo:        "vehicle_info",
	TypeSetConfig:          "set_config",
	TypeSDKMode:            "sdk_mode",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02x)", uint8(t))
}

// Message is any decoded or constructed protocol message.
type Message interface {
	Type() Type
}

// payloadCodec is implemented by every registered message kind.
type payloadCodec interface {
	Message
	appendPayload(w *payloadWriter)
	parsePayload(r *payloadReader)
}

// registry maps a type tag to a constructor for its payload codec.
var registry = map[Type]func() payloadCodec{
	TypePingRequest:        func() payloadCodec { return &PingRequest{} },
	TypePingResponse:       func() payloadCodec { return &PingResponse{} },
	TypeVersionRequest:     func() payloadCodec { return &VersionRequest{} },
	TypeVersionResponse:    func() payloadCodec { return &VersionResponse{} },
	TypeBatteryRequest:     func() payloadCodec { return &BatteryRequest{} },
	TypeBatteryResponse:    func() payloadCodec { return &BatteryResponse{} },
	TypeSetLights:          func() payloadCodec { return &SetLights{} },
	TypeSetSpeed:           func() payloadCodec { return &SetSpeed{} },
	TypeChangeLane:         func() payloadCodec { return &ChangeLane{} },
	TypeCancelLaneChange:   func() payloadCodec { return &CancelLaneChange{} },
	TypePositionUpdate:     func() payloadCodec { return &PositionUpdate{} },
	TypeTransitionUpdate:   func() payloadCodec { return &TransitionUpdate{} },
	TypeIntersectionUpdate: func() payloadCodec { return &IntersectionUpdate{} },
	TypeDelocalized:        func() payloadCodec { return &Delocalized{} },
	TypeSetOffset:          func() payloadCodec { return &SetOffset{} },
	TypeOffsetUpdate:       func() payloadCodec { return &OffsetUpdate{} },
	TypeTurn:               func() payloadCodec { return &Turn{} },
	TypeLightsPattern:      func() payloadCodec { return &LightsPattern{} },
	TypeVehicleInfo:        func() payloadCodec { return &VehicleInfo{} },
	TypeSetConfig:          func() payloadCodec { return &SetConfig{} },
	TypeSDKMode:            func() payloadCodec { return &SDKMode{} },
}

// Known reports whether t has a registered payload layout.
func Known(t Type) bool {
	_, ok := registry[t]
	return ok
}

// maxPayload is the largest payload the length byte can describe once the
// type byte is counted.
const maxPayload = 0xff - 1

// Decode parses a hex-encoded frame. Hex digits may be upper or lower case.
func Decode(hexMessage string) (Message, error) {
	data, err := hex.DecodeString(strings.TrimSpace(hexMessage))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return DecodeBytes(data)
}

// DecodeBytes parses a raw frame.
func DecodeBytes(data []byte) (Message, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: frame of %d bytes", ErrMalformedMessage, len(data))
	}
	size := int(data[0])
	if size != len(data)-1 {
		return nil, fmt.Errorf("%w: declared length %d, have %d", ErrMalformedMessage, size, len(data)-1)
	}
	typ := Type(data[1])
	payload := data[2:]

	ctor, ok := registry[typ]
	if !ok {
		raw := &Raw{Tag: typ, Payload: make([]byte, len(payload))}
		copy(raw.Payload, payload)
		return raw, nil
	}

	m := ctor()
	r := newPayloadReader(payload)
	m.parsePayload(r)
	if r.err != nil {
		return nil, fmt.Errorf("%w: %s payload of %d bytes", r.err, typ, len(payload))
	}
	return m, nil
}

// Encode serializes m into an uppercase hex frame.
func Encode(m Message) (string, error) {
	data, err := EncodeBytes(m)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(data)), nil
}

// EncodeBytes serializes m into a raw frame.
func EncodeBytes(m Message) ([]byte, error) {
	w := &payloadWriter{buf: make([]byte, 2, 20)}
	switch v := m.(type) {
	case *Raw:
		w.bytes(v.Payload)
	case payloadCodec:
		v.appendPayload(w)
	default:
		return nil, fmt.Errorf("protocol: cannot encode %T", m)
	}
	if len(w.buf)-2 > maxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(w.buf)-2)
	}
	w.buf[0] = byte(len(w.buf) - 1)
	w.buf[1] = byte(m.Type())
	return w.buf, nil
}

// Raw holds a message whose type has no registered layout. The payload is
// kept verbatim so it can be re-encoded unchanged.
type Raw struct {
	Tag     Type
	Payload []byte
}

func (m *Raw) Type() Type { return m.Tag }
