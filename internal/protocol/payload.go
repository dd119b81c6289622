package protocol

import (
	"encoding/binary"
	"math"
)

// payloadReader consumes little-endian fields from a payload. The first
// short read latches err and every later read returns zero values, so
// parsers can read a whole layout and check err once.
type payloadReader struct {
	buf []byte
	off int
	err error
}

func newPayloadReader(b []byte) *payloadReader {
	return &payloadReader{buf: b}
}

func (r *payloadReader) remaining() int {
	return len(r.buf) - r.off
}

func (r *payloadReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.remaining() < n {
		r.err = ErrMalformedMessage
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *payloadReader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *payloadReader) boolean() bool {
	return r.u8() != 0
}

func (r *payloadReader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *payloadReader) i16() int16 {
	return int16(r.u16())
}

func (r *payloadReader) f32() float32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func (r *payloadReader) rest() []byte {
	b := r.take(r.remaining())
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

type payloadWriter struct {
	buf []byte
}

func (w *payloadWriter) u8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *payloadWriter) boolean(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *payloadWriter) u16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *payloadWriter) i16(v int16) {
	w.u16(uint16(v))
}

func (w *payloadWriter) f32(v float32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(v))
}

func (w *payloadWriter) bytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// emptyPayload is embedded by message kinds that carry no payload.
type emptyPayload struct{}

func (emptyPayload) appendPayload(*payloadWriter) {}
func (emptyPayload) parsePayload(*payloadReader)  {}
