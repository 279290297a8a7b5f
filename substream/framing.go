package substream

import (
	"github.com/lumenmesh/p2pcore/internal/varint"
	pool "github.com/libp2p/go-buffer-pool"
)

// lpReader incrementally decodes a single varint-length-prefixed payload
// (no trailing newline, unlike msselect's line framing), enforcing a
// maximum size per spec §3's "outbound payloads respect per-protocol
// max_*_size -- violations are reported, not silently truncated."
type lpReader struct {
	lenDec  varint.Decoder
	haveLen bool
	length  uint64
	buf     []byte
	max     int
}

// lpErrOversize and lpErrMalformed are sentinel markers lpReader.feed returns
// so callers can translate them into the right protocol-specific error
// (RequestError, NotificationsOutErr, NotificationsInClosedErr all have
// their own oversize/malformed variants).
type lpFeedError int

const (
	lpErrOversize lpFeedError = iota
	lpErrMalformed
)

func (e lpFeedError) Error() string {
	if e == lpErrOversize {
		return "length-prefixed payload exceeds configured maximum"
	}
	return "malformed length prefix"
}

func newLPReader(max int) lpReader {
	return lpReader{max: max}
}

func (r *lpReader) reset() {
	r.lenDec.Reset()
	r.haveLen = false
	r.length = 0
	r.buf = nil
}

// feed consumes one byte, returning the completed payload once done. The
// returned payload is a buffer of its own that the reader does not reuse,
// so an Event can carry it without copying.
func (r *lpReader) feed(b byte) (payload []byte, done bool, err error) {
	if !r.haveLen {
		finished, ferr := r.lenDec.Feed(b)
		if ferr != nil {
			return nil, false, lpErrMalformed
		}
		if !finished {
			return nil, false, nil
		}
		r.length = r.lenDec.Value()
		if r.max >= 0 && r.length > uint64(r.max) {
			return nil, false, lpErrOversize
		}
		r.haveLen = true
		if r.length == 0 {
			r.reset()
			return []byte{}, true, nil
		}
		r.buf = pool.Get(int(r.length))[:0]
		return nil, false, nil
	}

	r.buf = append(r.buf, b)
	if uint64(len(r.buf)) < r.length {
		return nil, false, nil
	}
	out := r.buf
	r.buf = nil
	r.haveLen = false
	r.length = 0
	r.lenDec.Reset()
	return out, true, nil
}

// outbox is a simple byte queue fed by appends and drained in FIFO order
// through a cursor, so that a Flush call can be handed less output room
// than the queue currently holds without losing anything.
type outbox struct {
	buf []byte
	pos int
}

func (o *outbox) writeLenPrefixed(payload []byte) {
	o.buf = varint.AppendUvarint(o.buf, uint64(len(payload)))
	o.buf = append(o.buf, payload...)
}

func (o *outbox) writeRaw(b []byte) {
	o.buf = append(o.buf, b...)
}

func (o *outbox) pending() int {
	return len(o.buf) - o.pos
}

func (o *outbox) drain(dst []byte) int {
	n := copy(dst, o.buf[o.pos:])
	o.pos += n
	if o.pos == len(o.buf) {
		o.buf = o.buf[:0]
		o.pos = 0
	}
	return n
}
