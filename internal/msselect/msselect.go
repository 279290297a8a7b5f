// Package msselect implements the multistream-select v1 line protocol used
// to negotiate, per substream, which application protocol will run on it.
//
// Every message on the wire is a varint-prefixed line: varint(len(payload)+1)
// followed by payload followed by a single '\n'. The very first line
// exchanged in each direction is always the fixed header "/multistream/1.0.0".
// After that, the proposer (outbound substream owner) sends candidate
// protocol names one at a time; the lister (inbound substream owner) answers
// either the same name (accepted) or "na" (rejected, try another).
//
// This package reproduces the wire semantics documented for
// github.com/multiformats/go-multistream, but operates over plain byte
// buffers instead of an io.ReadWriteCloser: go-multistream's own API blocks
// on a live connection, which does not exist inside a sans-I/O core.
package msselect

import (
	"errors"

	"github.com/lumenmesh/p2pcore/internal/varint"
)

// HeaderProtocol is the fixed line exchanged first by both sides of a
// freshly opened substream.
const HeaderProtocol = "/multistream/1.0.0"

// NA is the line a lister sends back to reject a proposed protocol name.
const NA = "na"

// MaxLineLength bounds a single decoded line (protocol names are short;
// this only guards against a misbehaving peer claiming an absurd length).
const MaxLineLength = 1024

var (
	// ErrLineTooLong is returned when a peer claims a line longer than
	// MaxLineLength.
	ErrLineTooLong = errors.New("msselect: line exceeds maximum length")
	// ErrMalformedLine is returned when a fully-read line isn't terminated
	// by '\n'.
	ErrMalformedLine = errors.New("msselect: line missing trailing newline")
)

// LineDecoder incrementally decodes a sequence of varint-length-prefixed,
// '\n'-terminated lines, one byte at a time, resumable across partial reads.
type LineDecoder struct {
	lenDec  varint.Decoder
	haveLen bool
	length  uint64
	buf     []byte
}

// Feed consumes one input byte. When a complete line has been decoded, line
// holds its payload with the trailing '\n' stripped, and done is true. The
// LineDecoder resets itself automatically after a completed line so it can
// be fed straight into decoding the next one.
func (d *LineDecoder) Feed(b byte) (line []byte, done bool, err error) {
	if !d.haveLen {
		finished, err := d.lenDec.Feed(b)
		if err != nil {
			return nil, false, err
		}
		if !finished {
			return nil, false, nil
		}
		d.length = d.lenDec.Value()
		if d.length == 0 || d.length > MaxLineLength {
			return nil, false, ErrLineTooLong
		}
		d.haveLen = true
		d.buf = make([]byte, 0, d.length)
		return nil, false, nil
	}

	d.buf = append(d.buf, b)
	if uint64(len(d.buf)) < d.length {
		return nil, false, nil
	}

	// Full line (including the trailing '\n') has been read.
	if d.buf[len(d.buf)-1] != '\n' {
		return nil, false, ErrMalformedLine
	}
	out := d.buf[:len(d.buf)-1]
	d.lenDec.Reset()
	d.haveLen = false
	d.length = 0
	d.buf = nil
	return out, true, nil
}

// EncodeLine returns the on-wire bytes for a line carrying payload, i.e.
// varint(len(payload)+1) ++ payload ++ "\n".
func EncodeLine(payload string) []byte {
	total := uint64(len(payload) + 1)
	out := varint.AppendUvarint(make([]byte, 0, varint.Size(total)+len(payload)+1), total)
	out = append(out, payload...)
	out = append(out, '\n')
	return out
}
