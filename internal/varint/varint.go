// Package varint implements the little-endian base-128 variable-length
// integer encoding used both by multistream-select line lengths and by
// application-level frame lengths.
//
// Encoding is delegated to go-varint, the same library the surrounding
// libp2p stack uses for multistream-select and message framing. Because a
// sans-I/O core can be handed input one partial buffer at a time, Decoder is
// a byte-at-a-time resumable state machine that buffers the bytes of one
// value and decodes them with encoding/binary once the value terminates;
// unlike go-varint's decoder, this accepts the full 64-bit range.
package varint

import (
	"encoding/binary"
	"errors"

	govarint "github.com/multiformats/go-varint"
)

// MaxLebBytes is the maximum number of bytes a 64-bit LEB128 value can take.
const MaxLebBytes = 10

var (
	// ErrLebOverflow is returned when a varint exceeds MaxLebBytes without
	// terminating.
	ErrLebOverflow = errors.New("varint: value overflows 64 bits")
	// ErrLebInvalid names a varint cut short by the end of input. Decoder
	// has no notion of end of input and never returns it: a truncated
	// sequence leaves Feed waiting for further bytes.
	ErrLebInvalid = errors.New("varint: truncated or non-terminating sequence")
)

// Decoder incrementally decodes a single LEB128 unsigned varint, one byte at
// a time, so that parsing can resume across non-contiguous reads without
// losing state. Zero value is ready to use.
type Decoder struct {
	buf [MaxLebBytes]byte
	n   int
}

// Reset clears the decoder so that it is ready to parse a new varint.
func (d *Decoder) Reset() {
	d.n = 0
}

// Feed consumes one input byte. done is true once the varint is complete,
// after which Value reports the decoded number. A non-nil error is fatal
// for this Decoder; call Reset before reuse.
func (d *Decoder) Feed(b byte) (done bool, err error) {
	if d.n >= MaxLebBytes {
		return false, ErrLebOverflow
	}
	d.buf[d.n] = b
	d.n++

	if b&0x80 != 0 {
		return false, nil
	}

	if _, k := binary.Uvarint(d.buf[:d.n]); k <= 0 {
		return false, ErrLebOverflow
	}
	return true, nil
}

// Value returns the decoded value. Only meaningful once Feed has returned
// done=true.
func (d *Decoder) Value() uint64 {
	v, _ := binary.Uvarint(d.buf[:d.n])
	return v
}

// Len returns the number of bytes consumed so far for the in-progress or
// just-completed value.
func (d *Decoder) Len() int {
	return d.n
}

// AppendUvarint appends the LEB128 encoding of v to dst and returns the
// extended slice.
func AppendUvarint(dst []byte, v uint64) []byte {
	return append(dst, govarint.ToUvarint(v)...)
}

// Size returns the number of bytes the LEB128 encoding of v occupies.
func Size(v uint64) int {
	return govarint.UvarintSize(v)
}
