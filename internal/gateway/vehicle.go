package gateway

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/overdrive/internal/protocol"
)

// Handler receives one decoded message. It runs on the connector's
// goroutine and must not block for long.
type Handler = func(protocol.Message)

// SubscriptionID identifies one Subscribe call.
type SubscriptionID = uuid.UUID

type subscription struct {
	id  SubscriptionID
	all bool
	typ protocol.Type
	h   Handler
}

// Vehicle is a connected vehicle. Messages addressed to it are decoded and
// handed to its subscribers in subscription order; malformed messages are
// logged and dropped.
type Vehicle struct {
	conn    *Connector
	address string

	mu   sync.Mutex
	subs []subscription

	// dispatchMu serializes handler invocations.
	dispatchMu sync.Mutex
}

func newVehicle(c *Connector, addr string) *Vehicle {
	return &Vehicle{conn: c, address: addr}
}

func (v *Vehicle) Address() string { return v.address }

// Subscribe calls h for every message of type t.
func (v *Vehicle) Subscribe(t protocol.Type, h Handler) SubscriptionID {
	return v.add(subscription{id: uuid.New(), typ: t, h: h})
}

// SubscribeAll calls h for every message, including unknown types.
func (v *Vehicle) SubscribeAll(h Handler) SubscriptionID {
	return v.add(subscription{id: uuid.New(), all: true, h: h})
}

func (v *Vehicle) add(s subscription) SubscriptionID {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.subs = append(v.subs, s)
	return s.id
}

// Unsubscribe removes a subscription. It may be called from inside a
// handler; a handler already selected for the current message still runs.
func (v *Vehicle) Unsubscribe(id SubscriptionID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.subs = slices.DeleteFunc(v.subs, func(s subscription) bool { return s.id == id })
}

func (v *Vehicle) dispatchHex(payload string) {
	m, err := protocol.Decode(payload)
	if err != nil {
		logf("%s: dropping %q: %v", v.address, payload, err)
		return
	}
	v.Dispatch(m)
}

// Dispatch delivers m to the matching subscribers as if it had arrived
// from the vehicle.
func (v *Vehicle) Dispatch(m protocol.Message) {
	v.dispatchMu.Lock()
	defer v.dispatchMu.Unlock()

	v.mu.Lock()
	var handlers []Handler
	for _, s := range v.subs {
		if s.all || s.typ == m.Type() {
			handlers = append(handlers, s.h)
		}
	}
	v.mu.Unlock()

	for _, h := range handlers {
		h(m)
	}
}

// Send encodes m and writes it to the vehicle.
func (v *Vehicle) Send(m protocol.Message) error {
	return v.conn.send(v.address, m)
}

// Request sends req and waits for the first message of type want.
func (v *Vehicle) Request(ctx context.Context, req protocol.Message, want protocol.Type) (protocol.Message, error) {
	got := make(chan protocol.Message, 1)
	id := v.Subscribe(want, func(m protocol.Message) {
		select {
		case got <- m:
		default:
		}
	})
	defer v.Unsubscribe(id)

	if err := v.Send(req); err != nil {
		return nil, err
	}
	select {
	case m := <-got:
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// BatteryLevel asks the vehicle for its battery voltage in millivolts.
func (v *Vehicle) BatteryLevel(ctx context.Context) (uint16, error) {
	m, err := v.Request(ctx, &protocol.BatteryRequest{}, protocol.TypeBatteryResponse)
	if err != nil {
		return 0, err
	}
	return m.(*protocol.BatteryResponse).MilliVolts, nil
}

// Version asks the vehicle for its firmware version.
func (v *Vehicle) Version(ctx context.Context) (uint16, error) {
	m, err := v.Request(ctx, &protocol.VersionRequest{}, protocol.TypeVersionResponse)
	if err != nil {
		return 0, err
	}
	return m.(*protocol.VersionResponse).Version, nil
}

// Disconnect asks the gateway to drop this vehicle.
func (v *Vehicle) Disconnect(ctx context.Context) error {
	return v.conn.Disconnect(ctx, v.address)
}
