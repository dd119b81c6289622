package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/overdrive/internal/monitoring"
	"github.com/banshee-data/overdrive/internal/protocol"
	"github.com/banshee-data/overdrive/internal/serialmux"
	"github.com/banshee-data/overdrive/internal/timeutil"
)

var (
	ErrTimeout       = errors.New("gateway: no response")
	ErrConnectFailed = errors.New("gateway: connect failed")
	ErrNotConnected  = errors.New("gateway: vehicle not connected")
	ErrClosed        = errors.New("gateway: line stream closed")
)

const (
	cmdScan       = "SCAN"
	cmdConnect    = "CONNECT"
	cmdDisconnect = "DISCONNECT"

	scanCompleted = "SCAN;COMPLETED"
	replySuccess  = "SUCCESS"
)

var logf = monitoring.Prefixed("gateway:")

// Options tune a Connector. Zero fields take defaults.
type Options struct {
	// ResponseTimeout bounds each SCAN, CONNECT and DISCONNECT exchange.
	// Defaults to 10s.
	ResponseTimeout time.Duration
	// ConnectAttempts is how often CONNECT is tried before giving up.
	// Defaults to 5.
	ConnectAttempts int
	// RetryDelay separates connect attempts. Defaults to 500ms.
	RetryDelay time.Duration
	// Clock defaults to timeutil.RealClock.
	Clock timeutil.Clock
}

func (o Options) withDefaults() Options {
	if o.ResponseTimeout <= 0 {
		o.ResponseTimeout = 10 * time.Second
	}
	if o.ConnectAttempts <= 0 {
		o.ConnectAttempts = 5
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 500 * time.Millisecond
	}
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	return o
}

// waiter receives gateway replies starting with prefix while an exchange
// is in flight.
type waiter struct {
	prefix string
	lines  chan string
}

// Connector demultiplexes the gateway line stream: replies go to the
// exchange waiting for them and telemetry goes to the addressed Vehicle.
type Connector struct {
	mux  serialmux.SerialMuxInterface
	opts Options

	subID string
	lines chan string

	// exchangeMu allows one request/reply exchange at a time, since
	// replies carry no correlation id.
	exchangeMu sync.Mutex

	mu       sync.Mutex
	waiter   *waiter
	vehicles map[string]*Vehicle
	done     chan struct{}
}

// NewConnector subscribes to mux straight away so no reply can be missed
// between construction and Run.
func NewConnector(mux serialmux.SerialMuxInterface, opts Options) *Connector {
	id, lines := mux.Subscribe()
	return &Connector{
		mux:      mux,
		opts:     opts.withDefaults(),
		subID:    id,
		lines:    lines,
		vehicles: make(map[string]*Vehicle),
		done:     make(chan struct{}),
	}
}

// Run routes lines until ctx is done or the mux closes the subscription.
// Vehicle handlers run on Run's goroutine.
func (c *Connector) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.mux.Unsubscribe(c.subID)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-c.lines:
			if !ok {
				return nil
			}
			c.route(line)
		}
	}
}

func (c *Connector) route(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	c.mu.Lock()
	w := c.waiter
	c.mu.Unlock()
	if w != nil && strings.HasPrefix(line, w.prefix) {
		select {
		case w.lines <- line:
		default:
			logf("reply buffer full, dropping %q", line)
		}
		return
	}

	addr, payload, ok := strings.Cut(line, ";")
	if !ok {
		logf("ignoring line %q", line)
		return
	}
	switch addr {
	case cmdScan, cmdConnect, cmdDisconnect:
		// A late reply to an exchange that already gave up.
		logf("unexpected reply %q", line)
		return
	}

	c.mu.Lock()
	v := c.vehicles[addr]
	c.mu.Unlock()
	if v == nil {
		return
	}
	v.dispatchHex(payload)
}

// exchange sends command and collects the replies starting with prefix
// until last reports the final one.
func (c *Connector) exchange(ctx context.Context, command, prefix string, last func(string) bool) ([]string, error) {
	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()

	w := &waiter{prefix: prefix, lines: make(chan string, 64)}
	c.mu.Lock()
	c.waiter = w
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.waiter = nil
		c.mu.Unlock()
	}()

	if err := c.mux.SendCommand(command); err != nil {
		return nil, fmt.Errorf("send %q: %w", command, err)
	}

	timeout := c.opts.Clock.After(c.opts.ResponseTimeout)
	var replies []string
	for {
		select {
		case line := <-w.lines:
			replies = append(replies, line)
			if last(line) {
				return replies, nil
			}
		case <-timeout:
			return replies, fmt.Errorf("%w to %q after %s", ErrTimeout, command, c.opts.ResponseTimeout)
		case <-c.done:
			return replies, ErrClosed
		case <-ctx.Done():
			return replies, ctx.Err()
		}
	}
}

// Discovered is a vehicle seen during a SCAN.
type Discovered struct {
	Address       string                 `json:"address"`
	Advertisement protocol.Advertisement `json:"advertisement"`
}

// Discover asks the gateway to scan for vehicles. Each address is reported
// once even if the gateway repeats it; entries with undecodable
// advertisements are skipped.
func (c *Connector) Discover(ctx context.Context) ([]Discovered, error) {
	replies, err := c.exchange(ctx, cmdScan, cmdScan+";", func(line string) bool {
		return line == scanCompleted
	})
	if err != nil {
		return nil, err
	}

	var found []Discovered
	seen := make(map[string]bool)
	for _, line := range replies {
		if line == scanCompleted {
			continue
		}
		parts := strings.Split(line, ";")
		if len(parts) < 4 {
			logf("invalid scan response %q", line)
			continue
		}
		addr := parts[1]
		if seen[addr] {
			continue
		}
		ad, err := protocol.ParseAdvertisement(parts[2], parts[3])
		if err != nil {
			logf("skipping %s: %v", addr, err)
			continue
		}
		seen[addr] = true
		found = append(found, Discovered{Address: addr, Advertisement: ad})
	}
	return found, nil
}

// Connect asks the gateway to connect to addr, retrying on CONNECT;ERROR,
// and returns the Vehicle receiving that address's telemetry.
func (c *Connector) Connect(ctx context.Context, addr string) (*Vehicle, error) {
	command := cmdConnect + ";" + addr
	var lastReply string
	for attempt := 1; attempt <= c.opts.ConnectAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-c.opts.Clock.After(c.opts.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		replies, err := c.exchange(ctx, command, cmdConnect+";", func(string) bool { return true })
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				logf("connect %s attempt %d: %v", addr, attempt, err)
				lastReply = "timeout"
				continue
			}
			return nil, err
		}
		lastReply = replies[0]
		if lastReply == cmdConnect+";"+replySuccess {
			return c.register(addr), nil
		}
		logf("connect %s attempt %d: %s", addr, attempt, lastReply)
	}
	return nil, fmt.Errorf("%w: %s after %d attempts (%s)", ErrConnectFailed, addr, c.opts.ConnectAttempts, lastReply)
}

func (c *Connector) register(addr string) *Vehicle {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Reconnecting keeps the existing subscriptions.
	if v, ok := c.vehicles[addr]; ok {
		return v
	}
	v := newVehicle(c, addr)
	c.vehicles[addr] = v
	logf("connected %s", addr)
	return v
}

// Disconnect asks the gateway to drop addr. The vehicle stops receiving
// telemetry even when the gateway reports an error.
func (c *Connector) Disconnect(ctx context.Context, addr string) error {
	c.mu.Lock()
	_, ok := c.vehicles[addr]
	delete(c.vehicles, addr)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, addr)
	}

	replies, err := c.exchange(ctx, cmdDisconnect+";"+addr, cmdDisconnect+";", func(string) bool { return true })
	if err != nil {
		return err
	}
	if replies[0] != cmdDisconnect+";"+replySuccess {
		return fmt.Errorf("gateway: disconnect %s: %s", addr, replies[0])
	}
	return nil
}

// Vehicle returns the connected vehicle at addr, if any.
func (c *Connector) Vehicle(addr string) (*Vehicle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.vehicles[addr]
	return v, ok
}

func (c *Connector) send(addr string, m protocol.Message) error {
	c.mu.Lock()
	_, ok := c.vehicles[addr]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, addr)
	}
	hex, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	return c.mux.SendCommand(addr + ";" + hex)
}
