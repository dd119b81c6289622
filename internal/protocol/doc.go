// Package protocol implements the vehicle wire protocol: length-prefixed,
// type-tagged binary messages carried as hex strings.
//
// A frame is laid out as
//
//	[length][type][payload...]
//
// where length counts every byte after itself and multi-byte payload fields
// are little-endian. Decode dispatches on the type byte through a static
// registry; unknown types decode to *Raw so nothing read off the wire is lost.
package protocol
