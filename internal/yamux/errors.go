package yamux

import "errors"

// Fatal errors. Any of these means the whole connection must be torn down
// by the caller; see spec §7 "connection-fatal" tier.
var (
	ErrInvalidVersion     = errors.New("yamux: unsupported frame version")
	ErrInvalidFrameType   = errors.New("yamux: unknown frame type")
	ErrDuplicateSYN       = errors.New("yamux: SYN received for an already-open stream id")
	ErrUnknownACK         = errors.New("yamux: ACK received for an unknown stream id")
	ErrWindowOverrun      = errors.New("yamux: peer sent more DATA than its window allowed")
	ErrHeaderLengthTooBig = errors.New("yamux: frame length exceeds configured maximum")
	ErrUnexpectedEOF      = errors.New("yamux: connection closed mid-frame")
)

// ErrGoAway is returned by OpenStream once this side has sent or received a
// GO_AWAY: new outbound substreams are no longer permitted.
var ErrGoAway = errors.New("yamux: new outbound substreams forbidden")

// ErrStreamIDsExhausted is returned by OpenStream if this side's id space
// (even or odd 32-bit ids, stepping by two) has been exhausted.
var ErrStreamIDsExhausted = errors.New("yamux: stream id space exhausted")
