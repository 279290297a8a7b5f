// Package yamux implements the sans-I/O half of the yamux-style stream
// multiplexer: frame encoding/decoding, substream id allocation, SYN/ACK/
// FIN/RST bookkeeping and per-substream credit-based flow control. It owns
// no socket; callers feed it inbound bytes and pull outbound bytes.
package yamux

import "encoding/binary"

// HeaderSize is the fixed size, in bytes, of a yamux frame header.
const HeaderSize = 12

// ProtocolVersion is the only version this implementation speaks.
const ProtocolVersion = 0

// FrameType identifies the kind of a yamux frame.
type FrameType uint8

const (
	TypeData         FrameType = 0
	TypeWindowUpdate FrameType = 1
	TypePing         FrameType = 2
	TypeGoAway       FrameType = 3
)

// Flags is a bitset of yamux frame flags.
type Flags uint16

const (
	FlagSYN Flags = 1 << iota
	FlagACK
	FlagFIN
	FlagRST
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// GoAwayCode is the reason carried by a GO_AWAY frame's Length field.
type GoAwayCode uint32

const (
	GoAwayNormal        GoAwayCode = 0
	GoAwayProtocolError GoAwayCode = 1
	GoAwayInternalError GoAwayCode = 2
)

// DefaultInitialWindow is the default per-substream flow-control window, in
// bytes, that both peers grant each other for a newly opened substream.
const DefaultInitialWindow = 256 * 1024

// DefaultWindowUpdateThresholdNum / Den express the default credit-return
// fraction (1/2): a WINDOW_UPDATE is emitted once unacknowledged consumed
// credit exceeds InitialWindow * Num / Den.
const (
	DefaultWindowUpdateThresholdNum = 1
	DefaultWindowUpdateThresholdDen = 2
)

// Header is a decoded yamux frame header.
type Header struct {
	Version  uint8
	Type     FrameType
	Flags    Flags
	StreamID uint32
	Length   uint32
}

// Encode writes the 12-byte wire encoding of h into dst, which must be at
// least HeaderSize bytes long.
func (h Header) Encode(dst []byte) {
	_ = dst[HeaderSize-1]
	dst[0] = h.Version
	dst[1] = byte(h.Type)
	binary.BigEndian.PutUint16(dst[2:4], uint16(h.Flags))
	binary.BigEndian.PutUint32(dst[4:8], h.StreamID)
	binary.BigEndian.PutUint32(dst[8:12], h.Length)
}

// DecodeHeader parses a 12-byte slice into a Header. The caller must ensure
// src is at least HeaderSize bytes.
func DecodeHeader(src []byte) Header {
	_ = src[HeaderSize-1]
	return Header{
		Version:  src[0],
		Type:     FrameType(src[1]),
		Flags:    Flags(binary.BigEndian.Uint16(src[2:4])),
		StreamID: binary.BigEndian.Uint32(src[4:8]),
		Length:   binary.BigEndian.Uint32(src[8:12]),
	}
}
