package serialmux

import (
	"context"
	"fmt"
	"net"

	"go.bug.st/serial"
)

// NewRealSerialMux opens the serial port at path and multiplexes it.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}

	return NewSerialMux[serial.Port](port), nil
}

// NewTCPSerialMux dials a gateway listening on addr and multiplexes the
// connection.
func NewTCPSerialMux(ctx context.Context, addr string) (*SerialMux[net.Conn], error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial gateway %s: %w", addr, err)
	}
	return NewSerialMux[net.Conn](conn), nil
}
