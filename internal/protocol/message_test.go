package protocol

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKnownFrames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		hex  string
		want Message
	}{
		{"set speed", "0624D4FEE80301", &SetSpeed{Speed: -300, Accel: 1000, RespectLimit: true}},
		{"set speed bounds", "0624FF7F008000", &SetSpeed{Speed: math.MaxInt16, Accel: math.MinInt16}},
		{"change lane", "0B25FFFF0000000088C20007", &ChangeLane{HorizontalSpeed: math.MaxUint16, Offset: -68, Tag: 7}},
		{"position update", "102705110000BCC158024701022C015802", &PositionUpdate{
			LocationID: 5, PieceID: 17, Offset: -23.5, Speed: 600, ParsingFlags: 0x47,
			LastRecvLaneChangeID: 1, LastExecLaneChangeID: 2,
			LastDesiredHorizontalSpeed: 300, LastDesiredSpeed: 600,
		}},
		{"transition update with direction", "1229112100000000010203FFFF000004050607", &TransitionUpdate{
			PieceID: 17, PrevPieceID: 33, HasDrivingDirection: true, DrivingDirection: 1,
			LastRecvLaneChangeID: 2, LastExecLaneChangeID: 3, LastDesiredHorizontalSpeed: math.MaxUint16,
			UphillCounter: 4, DownhillCounter: 5, LeftWheelDistance: 6, RightWheelDistance: 7,
		}},
		{"transition update without direction", "11291121000000000203FFFF000004050607", &TransitionUpdate{
			PieceID: 17, PrevPieceID: 33,
			LastRecvLaneChangeID: 2, LastExecLaneChangeID: 3, LastDesiredHorizontalSpeed: math.MaxUint16,
			UphillCounter: 4, DownhillCounter: 5, LeftWheelDistance: 6, RightWheelDistance: 7,
		}},
		{"intersection update", "0A2A0A0000C03F01020301", &IntersectionUpdate{
			PieceID: 10, Offset: 1.5, DrivingDirection: 1, Code: 2, Turn: 3, Exiting: true,
		}},
		{"vehicle info", "053F0100ABCD", &VehicleInfo{OnTrack: true, Reserved: [2]byte{0xAB, 0xCD}}},
		{"battery response", "031B3C0F", &BatteryResponse{MilliVolts: 3900}},
		{"sdk mode", "03900101", NewSDKMode()},
		{"set offset", "052C000032C2", &SetOffset{Offset: -44.5}},
		{"ping request", "0116", &PingRequest{}},
		{"delocalized", "012B", &Delocalized{}},
		{"lights pattern", "0C33020104000A000002050A03", &LightsPattern{Channels: []LightConfig{
			{Channel: ChannelTail, Effect: EffectStrobe, End: 10},
			{Channel: ChannelEngineRed, Effect: EffectThrob, Start: 5, End: 10, Cycles: 3},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Decode(tt.hex)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := Encode(got)
			require.NoError(t, err)
			assert.Equal(t, tt.hex, again, "parse then serialize must reproduce the bytes")
		})
	}
}

func TestDecodeAcceptsLowercaseHex(t *testing.T) {
	t.Parallel()
	got, err := Decode("0624d4fee80301")
	require.NoError(t, err)
	assert.Equal(t, &SetSpeed{Speed: -300, Accel: 1000, RespectLimit: true}, got)
}

func TestRoundTripBoundaryValues(t *testing.T) {
	t.Parallel()

	msgs := []Message{
		&PingRequest{}, &PingResponse{}, &VersionRequest{}, &BatteryRequest{},
		&CancelLaneChange{}, &Delocalized{},
		&VersionResponse{Version: 0}, &VersionResponse{Version: math.MaxUint16},
		&BatteryResponse{MilliVolts: math.MaxUint16},
		&SetLights{Mask: LightMask(map[Light]bool{LightHead: true, LightEngine: false})},
		&SetSpeed{Speed: math.MinInt16, Accel: -1},
		&ChangeLane{HorizontalSpeed: math.MaxUint16, HorizontalAccel: 1, Offset: float32(math.MaxFloat32), HopIntent: true, Tag: 255},
		&PositionUpdate{LocationID: 255, PieceID: 255, Offset: -0.25, Speed: math.MaxUint16, ParsingFlags: 0xff},
		&TransitionUpdate{PieceID: 1, HasDrivingDirection: true, DrivingDirection: 255, RightWheelDistance: 255},
		&TransitionUpdate{PieceID: 1, LastDesiredSpeed: math.MaxUint16},
		&IntersectionUpdate{PieceID: 10, Offset: float32(math.SmallestNonzeroFloat32)},
		&SetOffset{Offset: 0},
		&OffsetUpdate{Offset: 68, LaneChangeID: 9},
		NewUTurn(),
		&LightsPattern{},
		&VehicleInfo{OnTrack: true, Charging: true, Reserved: [2]byte{0xff, 0}},
		&SetConfig{SuperCodeMask: 0xff, TrackMaterial: 1},
		&SDKMode{On: false, Flags: 0},
		&Raw{Tag: 0x77, Payload: []byte{1, 2, 3}},
	}

	for _, m := range msgs {
		s, err := Encode(m)
		require.NoError(t, err, "%T", m)
		got, err := Decode(s)
		require.NoError(t, err, "%T", m)
		assert.Equal(t, m, got, "%T via %s", m, s)
	}
}

func TestDecodeEmptyLightsPattern(t *testing.T) {
	t.Parallel()

	got, err := Decode("023300")
	require.NoError(t, err)
	pattern, ok := got.(*LightsPattern)
	require.True(t, ok, "want *LightsPattern, got %T", got)
	assert.Nil(t, pattern.Channels)
	assert.True(t, reflect.DeepEqual(&LightsPattern{}, got))
}

func TestDecodeUnknownTypeKeepsPayload(t *testing.T) {
	t.Parallel()

	got, err := Decode("04770A0B0C")
	require.NoError(t, err)
	raw, ok := got.(*Raw)
	require.True(t, ok, "want *Raw, got %T", got)
	assert.Equal(t, Type(0x77), raw.Type())
	assert.Equal(t, []byte{0x0A, 0x0B, 0x0C}, raw.Payload)
	assert.False(t, Known(raw.Type()))
	assert.Equal(t, "unknown(0x77)", raw.Type().String())
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		hex  string
	}{
		{"empty", ""},
		{"not hex", "ZZ"},
		{"odd length", "061"},
		{"length only", "00"},
		{"declared longer than data", "0624D4FE"},
		{"declared shorter than data", "0224D4FEE80301"},
		{"set speed truncated", "0324D4FE"},
		{"transition truncated", "0729112100000000"},
		{"lights count exceeds entries", "0433020104"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tt.hex)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedMessage), "got %v", err)
		})
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	t.Parallel()

	_, err := Encode(&Raw{Tag: 0x77, Payload: make([]byte, 255)})
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	s, err := Encode(&Raw{Tag: 0x77, Payload: make([]byte, 254)})
	require.NoError(t, err)
	assert.Equal(t, "FF77", s[:4])
}

func TestEncodeIsUppercase(t *testing.T) {
	t.Parallel()
	s, err := Encode(&SetOffset{Offset: -44.5})
	require.NoError(t, err)
	assert.Equal(t, "052C000032C2", s)
}

func TestPositionUpdateReverse(t *testing.T) {
	t.Parallel()
	assert.True(t, (&PositionUpdate{ParsingFlags: 0x47}).Reverse())
	assert.False(t, (&PositionUpdate{ParsingFlags: 0x07}).Reverse())
}

func TestTypeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "position_update", TypePositionUpdate.String())
	assert.Equal(t, "sdk_mode", TypeSDKMode.String())
	for typ := range registry {
		assert.Equal(t, typ, registry[typ]().Type(), "registry entry %s", typ)
	}
}
