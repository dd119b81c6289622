package protocol

import "errors"

var (
	// ErrMalformedMessage is returned when a frame is truncated, its length
	// byte disagrees with the bytes present, or a payload parser runs out of
	// bytes. Callers drop the message and keep reading the stream.
	ErrMalformedMessage = errors.New("protocol: malformed message")
	// ErrPayloadTooLarge is returned by Encode when a payload cannot be
	// described by the one-byte length prefix.
	ErrPayloadTooLarge = errors.New("protocol: payload too large")
	// ErrInvalidAdvertisement is returned for manufacturer data that is too
	// short or not hex.
	ErrInvalidAdvertisement = errors.New("protocol: invalid advertisement")
)
