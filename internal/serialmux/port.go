package serialmux

import "io"

// SerialPorter is the byte stream a SerialMux multiplexes: a serial port, a
// TCP connection to a gateway, or a test double.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}
