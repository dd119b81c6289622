package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/overdrive/internal/protocol"
)

func frame(t *testing.T, m protocol.Message) string {
	t.Helper()
	s, err := protocol.Encode(m)
	require.NoError(t, err)
	return s
}

func TestSplitLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line      string
		addr, hex string
		ok        bool
	}{
		{"0117", "", "0117", true},
		{"  ED:5A:1C:44:03:9B;0117\r", "ED:5A:1C:44:03:9B", "0117", true},
		{"SCAN;ED:5A:1C:44:03:9B;BEEF;00", "", "", false},
		{"SCAN;COMPLETED", "", "", false},
		{"CONNECT;SUCCESS", "", "", false},
		{"# comment", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		addr, hex, ok := splitLine(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.addr, addr, tt.line)
		assert.Equal(t, tt.hex, hex, tt.line)
	}
}

func TestDumpText(t *testing.T) {
	t.Parallel()

	in := strings.Join([]string{
		"SCAN;COMPLETED",
		"AA:BB;" + frame(t, &protocol.BatteryResponse{MilliVolts: 3900}),
		frame(t, protocol.NewSetSpeed(500, 1000)),
		"zz",
	}, "\n")

	var out bytes.Buffer
	st, err := dump(strings.NewReader(in), &out, options{})
	require.NoError(t, err)
	assert.Equal(t, stats{Decoded: 2, Malformed: 1, Skipped: 1}, st)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "AA:BB battery_response &{MilliVolts:3900}", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "set_speed "), lines[1])
}

func TestDumpJSON(t *testing.T) {
	t.Parallel()

	in := "AA:BB;" + frame(t, &protocol.VersionResponse{Version: 0x2345}) + "\n"
	var out bytes.Buffer
	_, err := dump(strings.NewReader(in), &out, options{json: true})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "AA:BB", got["address"])
	assert.Equal(t, "version_response", got["type"])
	assert.Equal(t, map[string]any{"Version": float64(0x2345)}, got["message"])
}

func TestDumpRoadmap(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	for _, id := range []uint8{33, 17, 18, 36, 20, 23, 34} {
		sb.WriteString("AA:BB;" + frame(t, &protocol.PositionUpdate{PieceID: id}) + "\n")
		sb.WriteString("AA:BB;" + frame(t, &protocol.TransitionUpdate{PrevPieceID: id}) + "\n")
	}

	var out bytes.Buffer
	st, err := dump(strings.NewReader(sb.String()), &out, options{roadmap: true})
	require.NoError(t, err)
	assert.Equal(t, 14, st.Decoded)
	assert.Contains(t, out.String(), "roadmap: 7 pieces, complete=true, skipped=0\n1: start\n")
	assert.Contains(t, out.String(), "7: finish\n")
}
