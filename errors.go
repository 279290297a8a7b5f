package p2pcore

import (
	"errors"
	"fmt"
)

// Error wraps a connection-fatal condition per spec §7: multiplexer
// protocol violation, unexpected mid-frame EOF, window overrun, duplicate
// SYN, unknown stream id on ACK, or oversize header length.
// SingleStream.ReadWrite returns this, and the connection must be dropped
// afterwards. MultiStream has no multiplexer and never returns it.
type Error struct {
	err error
}

func (e *Error) Error() string { return fmt.Sprintf("p2pcore: fatal connection error: %s", e.err) }
func (e *Error) Unwrap() error { return e.err }

func fatalf(cause error) *Error { return &Error{err: cause} }

// ErrNewOutboundForbidden is returned by AddRequest/OpenNotificationsSubstream
// once the peer's GO_AWAY has been observed; existing substreams are
// unaffected.
var ErrNewOutboundForbidden = errors.New("p2pcore: new outbound substreams forbidden")

// ErrHandshakeTooLarge is returned by OpenNotificationsSubstream when the
// caller-supplied handshake exceeds the protocol's configured maximum.
var ErrHandshakeTooLarge = errors.New("p2pcore: handshake exceeds configured maximum size")

// ErrUnknownSubstream is returned by operations addressing a SubstreamId
// that this connection no longer recognizes (already retired).
var ErrUnknownSubstream = errors.New("p2pcore: unknown or retired substream")
