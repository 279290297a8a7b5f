package yamux

import (
	pool "github.com/libp2p/go-buffer-pool"
)

// EventSink receives the effects of inbound frames as Multiplexer.ReadIn
// processes them. All calls happen synchronously, in frame order, from
// within ReadIn. A payload slice passed to OnData is only valid for the
// duration of the call; copy anything that must outlive it.
type EventSink interface {
	// OnStreamOpened reports a brand-new substream id observed for the
	// first time, always via an inbound SYN (initiatedByPeer is always
	// true; Multiplexer never calls this for locally-opened streams, since
	// OpenStream already returns the id synchronously).
	OnStreamOpened(id uint32, initiatedByPeer bool)
	OnData(id uint32, payload []byte)
	OnWindowUpdate(id uint32, delta uint32)
	OnFIN(id uint32)
	OnRST(id uint32)
	OnPing(value uint32, ack bool)
	OnGoAway(code GoAwayCode)
}

// stream is the multiplexer's own per-substream bookkeeping: id allocation,
// SYN/ACK/FIN/RST state and flow-control windows. It is distinct from (and
// sits underneath) the substream package's application-level state machine.
type stream struct {
	id uint32

	initiator      bool // true if OpenStream allocated this id locally
	inbound        bool // true if this id arrived via a peer SYN
	firstFrameSent bool
	ackPending     bool

	finSent, finRecv bool
	rstSent, rstRecv bool

	recvWindow      uint32 // credit we still grant the peer to send us DATA
	unackedConsumed uint32 // bytes consumed by the substream layer, not yet credited back
	sendWindow      uint32 // credit the peer has granted us to send DATA
}

type outQueue struct {
	buf []byte
	pos int
}

func (q *outQueue) writeFrame(hdr Header, payload []byte) {
	start := len(q.buf)
	q.buf = append(q.buf, make([]byte, HeaderSize)...)
	hdr.Encode(q.buf[start : start+HeaderSize])
	if len(payload) > 0 {
		q.buf = append(q.buf, payload...)
	}
}

type rxState struct {
	headerBuf  [HeaderSize]byte
	headerLen  int
	haveHeader bool
	hdr        Header
	bodyBuf    []byte
	bodyRead   uint32
}

// Multiplexer is the sans-I/O yamux-style multiplexer described in spec
// §4.2. It owns no socket: ReadIn consumes caller-supplied inbound bytes and
// WriteOut fills a caller-supplied outbound buffer.
type Multiplexer struct {
	client                     bool
	nextID                     uint32
	maxInboundSubstreams       int
	inboundOpen                int
	initialWindow              uint32
	thresholdNum, thresholdDen uint32

	streams map[uint32]*stream

	goAwaySent bool
	goAwayRecv bool

	out outQueue
	rx  rxState
}

// New constructs a Multiplexer. client selects the dialer id space (odd
// ids); the listener uses even ids starting at 2 (0 is reserved for
// connection-level control frames such as PING). initialWindow of 0 selects
// DefaultInitialWindow.
func New(client bool, maxInboundSubstreams int, initialWindow uint32) *Multiplexer {
	if initialWindow == 0 {
		initialWindow = DefaultInitialWindow
	}
	m := &Multiplexer{
		client:               client,
		maxInboundSubstreams: maxInboundSubstreams,
		initialWindow:        initialWindow,
		thresholdNum:         DefaultWindowUpdateThresholdNum,
		thresholdDen:         DefaultWindowUpdateThresholdDen,
		streams:              make(map[uint32]*stream),
	}
	if client {
		m.nextID = 1
	} else {
		m.nextID = 2
	}
	return m
}

// OpenStream allocates a new outbound substream id. The actual SYN flag is
// piggybacked onto whatever frame the caller sends first for this id via
// QueueData/QueueFIN/QueueRST.
func (m *Multiplexer) OpenStream() (uint32, error) {
	if m.goAwaySent || m.goAwayRecv {
		return 0, ErrGoAway
	}
	if m.nextID > ^uint32(0)-2 {
		return 0, ErrStreamIDsExhausted
	}
	id := m.nextID
	m.nextID += 2
	m.streams[id] = &stream{
		id:         id,
		initiator:  true,
		recvWindow: m.initialWindow,
		sendWindow: m.initialWindow,
	}
	return id, nil
}

func (m *Multiplexer) handshakeFlags(st *stream) Flags {
	var f Flags
	if !st.firstFrameSent {
		st.firstFrameSent = true
		if st.initiator {
			f |= FlagSYN
		}
	}
	if st.ackPending {
		st.ackPending = false
		f |= FlagACK
	}
	return f
}

// QueueData frames as much of payload as the peer's advertised window
// allows and returns how many bytes were accepted. The caller (the
// substream layer) must keep whatever wasn't accepted in its own outbound
// queue and retry after observing a WindowUpdate or on the next drive call.
func (m *Multiplexer) QueueData(id uint32, payload []byte) int {
	st, ok := m.streams[id]
	if !ok || st.rstSent || st.finSent {
		return 0
	}
	n := len(payload)
	if uint32(n) > st.sendWindow {
		n = int(st.sendWindow)
	}
	if n == 0 {
		return 0
	}
	flags := m.handshakeFlags(st)
	hdr := Header{Version: ProtocolVersion, Type: TypeData, Flags: flags, StreamID: id, Length: uint32(n)}
	m.out.writeFrame(hdr, payload[:n])
	st.sendWindow -= uint32(n)
	return n
}

// QueueFIN half-closes the writing direction of id.
func (m *Multiplexer) QueueFIN(id uint32) {
	st, ok := m.streams[id]
	if !ok || st.finSent || st.rstSent {
		return
	}
	flags := m.handshakeFlags(st) | FlagFIN
	hdr := Header{Version: ProtocolVersion, Type: TypeWindowUpdate, Flags: flags, StreamID: id}
	m.out.writeFrame(hdr, nil)
	st.finSent = true
	m.retireIfDone(id)
}

// QueueRST resets id, terminating both directions immediately.
func (m *Multiplexer) QueueRST(id uint32) {
	st, ok := m.streams[id]
	if !ok || st.rstSent {
		return
	}
	flags := m.handshakeFlags(st) | FlagRST
	hdr := Header{Version: ProtocolVersion, Type: TypeWindowUpdate, Flags: flags, StreamID: id}
	m.out.writeFrame(hdr, nil)
	st.rstSent = true
	m.retire(id)
}

// ConsumeCredit tells the multiplexer that the substream layer has consumed
// n bytes of previously delivered DATA. A WINDOW_UPDATE is emitted once
// unacknowledged consumed credit crosses the configured threshold fraction
// of the initial window (default 1/2) -- never before, so that this is the
// sole source of backpressure relief towards the peer.
func (m *Multiplexer) ConsumeCredit(id uint32, n uint32) {
	st, ok := m.streams[id]
	if !ok || n == 0 {
		return
	}
	st.unackedConsumed += n
	threshold := m.initialWindow * m.thresholdNum / m.thresholdDen
	if st.unackedConsumed <= threshold {
		return
	}
	delta := st.unackedConsumed
	st.unackedConsumed = 0
	st.recvWindow += delta
	flags := m.handshakeFlags(st)
	hdr := Header{Version: ProtocolVersion, Type: TypeWindowUpdate, Flags: flags, StreamID: id, Length: delta}
	m.out.writeFrame(hdr, nil)
}

// QueueGoAway announces that this side will open no further outbound
// substreams. Already-open substreams continue normally.
func (m *Multiplexer) QueueGoAway(code GoAwayCode) {
	if m.goAwaySent {
		return
	}
	m.goAwaySent = true
	m.out.writeFrame(Header{Version: ProtocolVersion, Type: TypeGoAway, Length: uint32(code)}, nil)
}

// WriteOut drains queued outbound frame bytes into dst, returning how many
// bytes were written. Safe to call repeatedly with a partially-sized dst;
// remaining bytes are retained for the next call.
func (m *Multiplexer) WriteOut(dst []byte) int {
	avail := len(m.out.buf) - m.out.pos
	if avail <= 0 {
		return 0
	}
	n := copy(dst, m.out.buf[m.out.pos:])
	m.out.pos += n
	if m.out.pos == len(m.out.buf) {
		m.out.buf = m.out.buf[:0]
		m.out.pos = 0
	}
	return n
}

// Pending reports how many encoded outbound bytes are waiting to be drained
// by WriteOut.
func (m *Multiplexer) Pending() int {
	return len(m.out.buf) - m.out.pos
}

// ReadIn consumes as many complete frames as src contains, dispatching
// their effects to sink, and returns the number of bytes consumed. A
// trailing partial frame is buffered internally and completed by a future
// call. eof reports that the underlying byte pipe will supply no further
// bytes beyond src; if a frame header or body is only partially buffered
// at that point, that is the "unexpected mid-frame EOF" connection-fatal
// condition of spec §7, reported as ErrUnexpectedEOF. A non-nil error is
// always connection-fatal.
func (m *Multiplexer) ReadIn(src []byte, eof bool, sink EventSink) (int, error) {
	total := 0
	for total < len(src) {
		n, err := m.readStep(src[total:], sink)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	if eof && m.midFrame() {
		return total, ErrUnexpectedEOF
	}
	return total, nil
}

// midFrame reports whether a frame header or body is only partially
// buffered, i.e. whether the peer closing its writing direction right now
// would truncate a frame rather than land on a frame boundary.
func (m *Multiplexer) midFrame() bool {
	if m.rx.headerLen > 0 && m.rx.headerLen < HeaderSize {
		return true
	}
	return m.rx.haveHeader && m.rx.hdr.Type == TypeData && m.rx.bodyRead < m.rx.hdr.Length
}

func (m *Multiplexer) readStep(src []byte, sink EventSink) (int, error) {
	if len(src) == 0 {
		return 0, nil
	}

	if !m.rx.haveHeader {
		need := HeaderSize - m.rx.headerLen
		take := min(need, len(src))
		n := copy(m.rx.headerBuf[m.rx.headerLen:], src[:take])
		m.rx.headerLen += n
		if m.rx.headerLen < HeaderSize {
			return n, nil
		}

		hdr := DecodeHeader(m.rx.headerBuf[:])
		if hdr.Version != ProtocolVersion {
			return n, ErrInvalidVersion
		}
		if hdr.Type > TypeGoAway {
			return n, ErrInvalidFrameType
		}
		if hdr.Type == TypeData && hdr.Length > 0 {
			// Bound the claimed length against the credit we could possibly
			// have granted for this stream before handing it to the
			// allocator: hdr.Length is attacker-controlled up to ~4 GiB, and
			// the window-overrun check in dispatch only runs once the whole
			// body has already been buffered.
			limit := m.initialWindow
			if st, ok := m.streams[hdr.StreamID]; ok {
				limit = st.recvWindow
			}
			if hdr.Length > limit {
				return n, ErrHeaderLengthTooBig
			}
		}
		m.rx.hdr = hdr
		m.rx.haveHeader = true
		m.rx.bodyRead = 0
		if hdr.Type == TypeData && hdr.Length > 0 {
			m.rx.bodyBuf = pool.Get(int(hdr.Length))
			return n, nil
		}
		// A frame without a body is complete once its header is: dispatch
		// it now rather than waiting for further input.
		m.rx.bodyBuf = nil
		err := m.dispatch(hdr, nil, sink)
		m.resetRx()
		return n, err
	}

	hdr := m.rx.hdr
	if hdr.Type != TypeData || hdr.Length == 0 {
		if err := m.dispatch(hdr, nil, sink); err != nil {
			return 0, err
		}
		m.resetRx()
		return 0, nil
	}

	remaining := hdr.Length - m.rx.bodyRead
	take := min(int(remaining), len(src))
	n := copy(m.rx.bodyBuf[m.rx.bodyRead:], src[:take])
	m.rx.bodyRead += uint32(n)
	if m.rx.bodyRead < hdr.Length {
		return n, nil
	}

	payload := m.rx.bodyBuf
	m.rx.bodyBuf = nil
	err := m.dispatch(hdr, payload, sink)
	pool.Put(payload)
	m.resetRx()
	return n, err
}

func (m *Multiplexer) resetRx() {
	m.rx.haveHeader = false
	m.rx.headerLen = 0
	m.rx.bodyRead = 0
}

func (m *Multiplexer) dispatch(hdr Header, payload []byte, sink EventSink) error {
	if hdr.Type == TypeGoAway {
		m.goAwayRecv = true
		sink.OnGoAway(GoAwayCode(hdr.Length))
		return nil
	}
	if hdr.Type == TypePing {
		if hdr.Flags.Has(FlagACK) {
			sink.OnPing(hdr.Length, true)
			return nil
		}
		sink.OnPing(hdr.Length, false)
		m.out.writeFrame(Header{Version: ProtocolVersion, Type: TypePing, Flags: FlagACK, Length: hdr.Length}, nil)
		return nil
	}

	id := hdr.StreamID
	st, exists := m.streams[id]

	if hdr.Flags.Has(FlagSYN) {
		if exists {
			return ErrDuplicateSYN
		}
		if m.inboundOpen >= m.maxInboundSubstreams {
			m.out.writeFrame(Header{Version: ProtocolVersion, Type: TypeWindowUpdate, Flags: FlagACK | FlagRST, StreamID: id}, nil)
			return nil
		}
		st = &stream{
			id:         id,
			inbound:    true,
			ackPending: true,
			recvWindow: m.initialWindow,
			sendWindow: m.initialWindow,
		}
		m.streams[id] = st
		m.inboundOpen++
		sink.OnStreamOpened(id, true)
	} else if !exists {
		return ErrUnknownACK
	}

	if hdr.Flags.Has(FlagACK) {
		// Nothing else to record: absence of a dedicated "waiting for ACK"
		// observer is fine, since the substream layer only cares that
		// bytes started flowing.
	}

	if hdr.Type == TypeData {
		if hdr.Length > st.recvWindow {
			return ErrWindowOverrun
		}
		st.recvWindow -= hdr.Length
		if hdr.Length > 0 {
			sink.OnData(id, payload)
		}
	} else {
		st.sendWindow += hdr.Length
		sink.OnWindowUpdate(id, hdr.Length)
	}

	if hdr.Flags.Has(FlagFIN) {
		st.finRecv = true
		sink.OnFIN(id)
		m.retireIfDone(id)
	}
	if hdr.Flags.Has(FlagRST) {
		st.rstRecv = true
		sink.OnRST(id)
		m.retire(id)
	}
	return nil
}

func (m *Multiplexer) retireIfDone(id uint32) {
	st, ok := m.streams[id]
	if !ok {
		return
	}
	if st.finSent && st.finRecv {
		m.retire(id)
	}
}

func (m *Multiplexer) retire(id uint32) {
	st, ok := m.streams[id]
	if !ok {
		return
	}
	if st.inbound {
		m.inboundOpen--
	}
	delete(m.streams, id)
}

// IsGoAwaySent reports whether this side has announced GO_AWAY.
func (m *Multiplexer) IsGoAwaySent() bool { return m.goAwaySent }

// IsGoAwayReceived reports whether the peer has announced GO_AWAY.
func (m *Multiplexer) IsGoAwayReceived() bool { return m.goAwayRecv }

// NumInboundOpen returns the number of currently open peer-initiated
// substreams, for admission-control accounting by callers.
func (m *Multiplexer) NumInboundOpen() int { return m.inboundOpen }

// SendWindow reports how many DATA bytes id may currently send before
// exhausting the peer's advertised credit. Callers use this to size a
// QueueData call so that every byte handed in is guaranteed to be accepted,
// rather than discovering the cap only after the fact.
func (m *Multiplexer) SendWindow(id uint32) uint32 {
	st, ok := m.streams[id]
	if !ok {
		return 0
	}
	return st.sendWindow
}
