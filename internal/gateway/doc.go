// Package gateway talks to the Bluetooth gateway that relays between this
// process and the vehicles. The gateway speaks a line protocol:
//
//	SCAN                   -> SCAN;<addr>;<manufacturer hex>;<local name hex> ... SCAN;COMPLETED
//	CONNECT;<addr>         -> CONNECT;SUCCESS | CONNECT;ERROR
//	DISCONNECT;<addr>      -> DISCONNECT;SUCCESS | DISCONNECT;ERROR
//	<addr>;<message hex>      both directions, one protocol message per line
//
// A Connector owns the line stream and a Vehicle is one connected car.
package gateway
