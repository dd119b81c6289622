package gateway

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/overdrive/internal/protocol"
	"github.com/banshee-data/overdrive/internal/scanner"
	"github.com/banshee-data/overdrive/internal/serialmux"
	"github.com/banshee-data/overdrive/internal/timeutil"
)

const addr = "e6:d8:52:f1:33:a4"

// fakeGateway answers commands written to the port with the lines reply
// returns for them.
type fakeGateway struct {
	port *serialmux.TestableSerialPort
	mux  *serialmux.SerialMux[*serialmux.TestableSerialPort]
	conn *Connector

	mu       sync.Mutex
	commands []string
}

func newFakeGateway(t *testing.T, opts Options, reply func(cmd string) []string) *fakeGateway {
	t.Helper()
	g := &fakeGateway{port: serialmux.NewTestableSerialPort()}
	g.port.OnWrite = func(p []byte) {
		cmd := strings.TrimSpace(string(p))
		g.mu.Lock()
		g.commands = append(g.commands, cmd)
		g.mu.Unlock()
		for _, line := range reply(cmd) {
			g.port.AddLine(line)
		}
	}
	g.mux = serialmux.NewSerialMux(g.port)
	g.conn = NewConnector(g.mux, opts)

	ctx, cancel := context.WithCancel(context.Background())
	go g.mux.Monitor(ctx)
	go g.conn.Run(ctx)
	t.Cleanup(func() {
		cancel()
		g.mux.Close()
	})
	return g
}

func (g *fakeGateway) sent() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.commands...)
}

func connectOK(cmd string) []string {
	switch {
	case strings.HasPrefix(cmd, "CONNECT;"):
		return []string{"CONNECT;SUCCESS"}
	case strings.HasPrefix(cmd, "DISCONNECT;"):
		return []string{"DISCONNECT;SUCCESS"}
	}
	return nil
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	g := newFakeGateway(t, Options{}, func(cmd string) []string {
		if cmd != "SCAN" {
			return nil
		}
		return []string{
			"SCAN;" + addr + ";efbe000878563412;40",
			"SCAN;" + addr + ";efbe000878563412;40",
			"SCAN;c0:ff:ee:00:00:01;efbe000178563412;10",
			"SCAN;bad",
			"SCAN;c0:ff:ee:00:00:02;zz;10",
			"SCAN;COMPLETED",
		}
	})

	found, err := g.conn.Discover(testContext(t))
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, addr, found[0].Address)
	assert.Equal(t, protocol.ModelGroundshock, found[0].Advertisement.Model)
	assert.True(t, found[0].Advertisement.Charging)
	assert.Equal(t, "c0:ff:ee:00:00:01", found[1].Address)
	assert.Equal(t, protocol.ModelKourai, found[1].Advertisement.Model)
}

func TestDiscoverTimeout(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Unix(0, 0))
	g := newFakeGateway(t, Options{Clock: clock, ResponseTimeout: time.Second}, func(string) []string { return nil })

	ctx := testContext(t)
	errc := make(chan error, 1)
	go func() {
		_, err := g.conn.Discover(ctx)
		errc <- err
	}()
	require.Eventually(t, func() bool { return clock.Pending() == 1 }, 2*time.Second, time.Millisecond)
	clock.Advance(time.Second)
	assert.ErrorIs(t, <-errc, ErrTimeout)
}

func TestConnectRetries(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	attempts := 0
	g := newFakeGateway(t, Options{RetryDelay: time.Millisecond}, func(cmd string) []string {
		if !strings.HasPrefix(cmd, "CONNECT;") {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return []string{"CONNECT;ERROR"}
		}
		return []string{"CONNECT;SUCCESS"}
	})

	v, err := g.conn.Connect(testContext(t), addr)
	require.NoError(t, err)
	assert.Equal(t, addr, v.Address())
	assert.Equal(t, []string{"CONNECT;" + addr, "CONNECT;" + addr, "CONNECT;" + addr}, g.sent())

	same, ok := g.conn.Vehicle(addr)
	assert.True(t, ok)
	assert.Same(t, v, same)
}

func TestConnectGivesUp(t *testing.T) {
	t.Parallel()

	g := newFakeGateway(t, Options{ConnectAttempts: 2, RetryDelay: time.Millisecond}, func(cmd string) []string {
		return []string{"CONNECT;ERROR"}
	})
	_, err := g.conn.Connect(testContext(t), addr)
	assert.ErrorIs(t, err, ErrConnectFailed)
	assert.Len(t, g.sent(), 2)
	_, ok := g.conn.Vehicle(addr)
	assert.False(t, ok)
}

func TestTelemetryDispatch(t *testing.T) {
	t.Parallel()

	g := newFakeGateway(t, Options{}, connectOK)
	v, err := g.conn.Connect(testContext(t), addr)
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	got := make(chan struct{}, 8)
	record := func(name string) Handler {
		return func(m protocol.Message) {
			mu.Lock()
			order = append(order, name+":"+m.Type().String())
			mu.Unlock()
			got <- struct{}{}
		}
	}
	v.Subscribe(protocol.TypeBatteryResponse, record("first"))
	v.SubscribeAll(record("all"))
	id := v.Subscribe(protocol.TypeBatteryResponse, record("third"))
	v.Unsubscribe(id)

	g.port.AddLine(addr + ";zz")                 // malformed, dropped
	g.port.AddLine("aa:aa:aa:aa:aa:aa;031B3C0F") // another vehicle
	g.port.AddLine(addr + ";031B3C0F")
	g.port.AddLine(addr + ";0117")

	for range 3 {
		select {
		case <-got:
		case <-time.After(2 * time.Second):
			t.Fatal("handlers not called")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first:battery_response", "all:battery_response", "all:ping_response"}, order)
}

func TestSendAndRequest(t *testing.T) {
	t.Parallel()

	var g *fakeGateway
	g = newFakeGateway(t, Options{}, func(cmd string) []string {
		if cmd == addr+";011A" {
			return []string{addr + ";031B3C0F"}
		}
		if cmd == addr+";0118" {
			return []string{addr + ";03192E01"}
		}
		return connectOK(cmd)
	})
	v, err := g.conn.Connect(testContext(t), addr)
	require.NoError(t, err)

	require.NoError(t, v.Send(protocol.NewSetSpeed(500, 1000)))
	assert.Contains(t, g.sent(), addr+";0624F401E80300")

	mv, err := v.BatteryLevel(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, uint16(3900), mv)

	ver, err := v.Version(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, uint16(0x012e), ver)
}

func TestDisconnect(t *testing.T) {
	t.Parallel()

	g := newFakeGateway(t, Options{}, connectOK)
	v, err := g.conn.Connect(testContext(t), addr)
	require.NoError(t, err)

	require.NoError(t, v.Disconnect(testContext(t)))
	_, ok := g.conn.Vehicle(addr)
	assert.False(t, ok)
	assert.ErrorIs(t, v.Send(&protocol.PingRequest{}), ErrNotConnected)
	assert.ErrorIs(t, g.conn.Disconnect(testContext(t), addr), ErrNotConnected)
}

func TestVehicleDrivesScanner(t *testing.T) {
	t.Parallel()

	g := newFakeGateway(t, Options{}, connectOK)
	v, err := g.conn.Connect(testContext(t), addr)
	require.NoError(t, err)

	var src scanner.TelemetrySource = v
	s := scanner.New(src, scanner.Options{})
	s.Start()

	for _, piece := range []uint8{33, 17, 18, 36, 20, 23, 34} {
		pos, err := protocol.Encode(&protocol.PositionUpdate{PieceID: piece})
		require.NoError(t, err)
		trans, err := protocol.Encode(&protocol.TransitionUpdate{PrevPieceID: piece})
		require.NoError(t, err)
		g.port.AddLine(addr + ";" + pos)
		g.port.AddLine(addr + ";" + trans)
	}

	ctx := testContext(t)
	require.NoError(t, s.WaitComplete(ctx, 0))
	assert.Equal(t, 7, s.Roadmap().Len())
}
