package substream

import (
	"time"

	"github.com/lumenmesh/p2pcore/internal/msselect"
)

type machineKind uint8

const (
	kindInboundNegotiating machineKind = iota
	kindInboundFailed
	kindRequestOut
	kindRequestIn
	kindNotificationsOut
	kindNotificationsIn
	kindPingOut
	kindPingIn
	kindClosed
)

// Phase values. Each kind only ever reads its own subset; the shared int
// field keeps the struct small instead of a field-per-kind state tag.
const (
	phaseNegotiating = iota // RequestOut / NotificationsOut / PingOut, pre-dispatch

	phaseReqOutWaitingResponse
	phaseReqOutClosed

	phaseReqInRecv
	phaseReqInRespond
	phaseReqInClosed

	phaseNotifOutHandshakeRecv
	phaseNotifOutOpen
	phaseNotifOutClosed

	phaseNotifInRecvHandshake
	phaseNotifInWaitAnswer
	phaseNotifInAccepted
	phaseNotifInClosed

	phasePingOutWaitingPong
)

// Machine is the per-substream state machine of spec §4.3: multistream-
// select negotiation followed by one application sub-machine. It is fed
// bytes and a writable budget, and never performs I/O of its own.
type Machine[TRqUd any, TNotifUd any] struct {
	id        ID
	protocols *Protocols

	kind  machineKind
	phase int

	out outbox

	wantsFIN bool
	wantsRST bool
	done     bool

	wake    time.Time
	hasWake bool

	// inbound negotiation (lister role)
	inNeg       msselect.LineDecoder
	inNegHeader bool

	// outbound negotiation (proposer role), shared by RequestOut/
	// NotificationsOut/PingOut
	outNeg       msselect.LineDecoder
	outNegHeader bool
	protocolName string

	// request-out
	reqOutProtocolIndex int
	reqOutUserData      TRqUd
	reqOutEmpty         bool
	reqOutPending       []byte
	reqOutLP            lpReader

	// request-in
	reqInProtocolIndex int
	reqInLP            lpReader

	// notifications-out
	notifOutProtocolIndex int
	notifOutUserData      TNotifUd
	notifOutPending       []byte
	notifOutLP            lpReader

	// notifications-in
	notifInProtocolIndex   int
	notifInMaxNotification int
	notifInUserData        TNotifUd
	notifInLP              lpReader

	// ping
	pingNonce [32]byte
	pingRecv  [32]byte
	pingRecvN int
}

// NewInboundNegotiating starts a freshly-opened inbound substream reading
// the peer's proposed protocol name.
func NewInboundNegotiating[TRqUd any, TNotifUd any](id ID, protocols *Protocols) *Machine[TRqUd, TNotifUd] {
	m := &Machine[TRqUd, TNotifUd]{id: id, protocols: protocols, kind: kindInboundNegotiating}
	m.out.writeRaw(msselect.EncodeLine(msselect.HeaderProtocol))
	return m
}

// NewRequestOut starts an outbound request-response substream.
func NewRequestOut[TRqUd any, TNotifUd any](id ID, protocolIndex int, name string, empty bool, maxResponseSize int, request []byte, deadline time.Time, userData TRqUd) *Machine[TRqUd, TNotifUd] {
	m := &Machine[TRqUd, TNotifUd]{id: id, kind: kindRequestOut, phase: phaseNegotiating}
	m.protocolName = name
	m.reqOutProtocolIndex = protocolIndex
	m.reqOutUserData = userData
	m.reqOutEmpty = empty
	m.reqOutPending = request
	m.reqOutLP = newLPReader(maxResponseSize)
	m.wake = deadline
	m.hasWake = true
	m.out.writeRaw(msselect.EncodeLine(msselect.HeaderProtocol))
	m.out.writeRaw(msselect.EncodeLine(name))
	return m
}

// NewNotificationsOut starts an outbound notifications substream.
func NewNotificationsOut[TRqUd any, TNotifUd any](id ID, protocolIndex int, name string, maxHandshakeSize int, handshake []byte, deadline time.Time, userData TNotifUd) *Machine[TRqUd, TNotifUd] {
	m := &Machine[TRqUd, TNotifUd]{id: id, kind: kindNotificationsOut, phase: phaseNegotiating}
	m.protocolName = name
	m.notifOutProtocolIndex = protocolIndex
	m.notifOutUserData = userData
	m.notifOutPending = handshake
	m.notifOutLP = newLPReader(maxHandshakeSize)
	m.wake = deadline
	m.hasWake = true
	m.out.writeRaw(msselect.EncodeLine(msselect.HeaderProtocol))
	m.out.writeRaw(msselect.EncodeLine(name))
	return m
}

// NewPingOut starts a fresh ping-out substream, negotiating the ping
// protocol and sending a 32-byte nonce once accepted.
func NewPingOut[TRqUd any, TNotifUd any](id ID, pingProtocol string, nonce [32]byte, deadline time.Time) *Machine[TRqUd, TNotifUd] {
	m := &Machine[TRqUd, TNotifUd]{id: id, kind: kindPingOut, phase: phaseNegotiating}
	m.protocolName = pingProtocol
	m.pingNonce = nonce
	m.wake = deadline
	m.hasWake = true
	m.out.writeRaw(msselect.EncodeLine(msselect.HeaderProtocol))
	m.out.writeRaw(msselect.EncodeLine(pingProtocol))
	return m
}

// ID returns this substream's identifier.
func (m *Machine[T, N]) ID() ID { return m.id }

// Done reports whether the machine has reached a terminal state.
func (m *Machine[T, N]) Done() bool { return m.done }

// TakeWantsFIN/TakeWantsRST are consume-once flags: once true, the caller
// must forward a FIN/RST to the transport layer (yamux, or the host pipe)
// for this substream's id.
func (m *Machine[T, N]) TakeWantsFIN() bool {
	v := m.wantsFIN
	m.wantsFIN = false
	return v
}

func (m *Machine[T, N]) TakeWantsRST() bool {
	v := m.wantsRST
	m.wantsRST = false
	return v
}

// PendingFIN/PendingRST peek at the consume-once flags without clearing
// them, so a caller can wait for PendingOut to drain to zero before
// forwarding a half-close/reset to the transport, while still knowing one
// is queued.
func (m *Machine[T, N]) PendingFIN() bool { return m.wantsFIN }
func (m *Machine[T, N]) PendingRST() bool { return m.wantsRST }

// PendingOut reports how many encoded outbound bytes are queued.
func (m *Machine[T, N]) PendingOut() int { return m.out.pending() }

// Flush drains up to len(out) queued outbound bytes into out.
func (m *Machine[T, N]) Flush(out []byte) int { return m.out.drain(out) }

// WakeDeadline returns the next time Poll should be invoked, if any.
func (m *Machine[T, N]) WakeDeadline() (time.Time, bool) { return m.wake, m.hasWake }

// Poll checks the substream's own deadline (request timeout, notifications
// handshake timeout, ping timeout) against now.
func (m *Machine[T, N]) Poll(now time.Time) *Event[T, N] {
	if m.done || !m.hasWake || now.Before(m.wake) {
		return nil
	}
	m.hasWake = false
	switch m.kind {
	case kindRequestOut:
		m.done = true
		m.wantsRST = true
		return &Event[T, N]{Kind: EventResponse, ID: m.id, ResponseIsErr: true, ResponseErr: RequestErrTimeout, RequestUserData: m.reqOutUserData}
	case kindNotificationsOut:
		m.done = true
		m.wantsRST = true
		return &Event[T, N]{Kind: EventNotificationsOutResult, ID: m.id, NotifOutIsErr: true, NotifOutErr: NotifOutErrTimeout, NotifUserData: m.notifOutUserData}
	case kindPingOut:
		m.done = true
		m.wantsFIN = true
		return &Event[T, N]{Kind: EventPingOutFailed, ID: m.id}
	}
	return nil
}

// Feed delivers newly-arrived inbound bytes. eof means the peer has FIN'd
// its writing direction (no bytes beyond data will ever arrive); reset
// means the peer sent RST (discard everything, terminate immediately).
func (m *Machine[T, N]) Feed(data []byte, eof bool, reset bool) (consumed int, ev *Event[T, N]) {
	if m.done {
		return len(data), nil
	}
	if reset {
		return 0, m.handlePeerReset()
	}
	for i, b := range data {
		if e := m.feedByte(b); e != nil {
			return i + 1, e
		}
		if m.done {
			return i + 1, nil
		}
	}
	if eof {
		return len(data), m.handlePeerEOF()
	}
	return len(data), nil
}

func (m *Machine[T, N]) feedByte(b byte) *Event[T, N] {
	switch m.kind {
	case kindInboundNegotiating:
		return m.feedInboundNegotiating(b)
	case kindRequestOut:
		return m.feedRequestOut(b)
	case kindRequestIn:
		return m.feedRequestIn(b)
	case kindNotificationsOut:
		return m.feedNotificationsOut(b)
	case kindNotificationsIn:
		return m.feedNotificationsIn(b)
	case kindPingOut:
		return m.feedPingOut(b)
	case kindPingIn:
		return m.feedPingIn(b)
	default:
		return nil
	}
}

// feedNegLine feeds one byte into a multistream-select line decoder and
// reports a completed *proposal* line, swallowing the leading header line
// (which both negotiation roles exchange first and neither inspects).
func feedNegLine(dec *msselect.LineDecoder, gotHeader *bool, b byte) (line []byte, proposalDone bool, err error) {
	l, done, ferr := dec.Feed(b)
	if ferr != nil {
		return nil, false, ferr
	}
	if !done {
		return nil, false, nil
	}
	if !*gotHeader {
		*gotHeader = true
		return nil, false, nil
	}
	return l, true, nil
}

func (m *Machine[T, N]) feedInboundNegotiating(b byte) *Event[T, N] {
	line, done, err := feedNegLine(&m.inNeg, &m.inNegHeader, b)
	if err != nil {
		m.kind = kindInboundFailed
		m.done = true
		m.wantsFIN = true
		return &Event[T, N]{Kind: EventInboundError, ID: m.id, InboundErr: InboundErrNegotiationError}
	}
	if !done {
		return nil
	}

	name := string(line)
	matchKind, idx, ok := m.protocols.matchInbound(name)
	if !ok {
		m.out.writeRaw(msselect.EncodeLine(msselect.NA))
		return nil
	}
	m.out.writeRaw(msselect.EncodeLine(name))

	switch matchKind {
	case inboundMatchPing:
		m.kind = kindPingIn
	case inboundMatchRequest:
		proto := m.protocols.Requests[idx]
		m.kind = kindRequestIn
		m.reqInProtocolIndex = idx
		m.reqInLP = newLPReader(proto.InboundConfig.MaxSizeOrZero())
		if proto.InboundConfig.Empty {
			m.phase = phaseReqInRespond
			return &Event[T, N]{Kind: EventRequestIn, ID: m.id, ProtocolIndex: idx, Request: []byte{}}
		}
		m.phase = phaseReqInRecv
	case inboundMatchNotifications:
		proto := m.protocols.Notifications[idx]
		m.kind = kindNotificationsIn
		m.notifInProtocolIndex = idx
		m.notifInMaxNotification = proto.MaxNotificationSize
		m.notifInLP = newLPReader(proto.MaxHandshakeSize)
		m.phase = phaseNotifInRecvHandshake
	}
	return nil
}

func (m *Machine[T, N]) feedRequestOut(b byte) *Event[T, N] {
	if m.phase == phaseNegotiating {
		line, done, err := feedNegLine(&m.outNeg, &m.outNegHeader, b)
		if err != nil {
			// A malformed multistream-select line is a negotiation failure,
			// not a response-framing one; the response-size error kinds
			// below are reserved for the post-negotiation read.
			m.done = true
			m.wantsRST = true
			return &Event[T, N]{Kind: EventResponse, ID: m.id, ResponseIsErr: true, ResponseErr: RequestErrProtocolNotAvailable, RequestUserData: m.reqOutUserData}
		}
		if !done {
			return nil
		}
		if string(line) != m.protocolName {
			m.done = true
			m.wantsFIN = true
			return &Event[T, N]{Kind: EventResponse, ID: m.id, ResponseIsErr: true, ResponseErr: RequestErrProtocolNotAvailable, RequestUserData: m.reqOutUserData}
		}
		if !m.reqOutEmpty {
			m.out.writeLenPrefixed(m.reqOutPending)
		}
		m.wantsFIN = true
		m.phase = phaseReqOutWaitingResponse
		return nil
	}

	// phaseReqOutWaitingResponse
	payload, done, err := m.reqOutLP.feed(b)
	if err != nil {
		m.done = true
		m.wantsRST = true
		respErr := RequestErrInvalidResponseSize
		if err == lpErrOversize {
			respErr = RequestErrResponseTooLarge
		}
		return &Event[T, N]{Kind: EventResponse, ID: m.id, ResponseIsErr: true, ResponseErr: respErr, RequestUserData: m.reqOutUserData}
	}
	if !done {
		return nil
	}
	m.done = true
	m.phase = phaseReqOutClosed
	return &Event[T, N]{Kind: EventResponse, ID: m.id, Response: payload, RequestUserData: m.reqOutUserData}
}

func (m *Machine[T, N]) feedRequestIn(b byte) *Event[T, N] {
	if m.phase != phaseReqInRecv {
		return nil // awaiting caller's RespondInRequest, or already closed
	}
	payload, done, err := m.reqInLP.feed(b)
	if err != nil {
		m.done = true
		m.wantsRST = true
		return &Event[T, N]{Kind: EventInboundError, ID: m.id, InboundErr: InboundErrNegotiationError}
	}
	if !done {
		return nil
	}
	m.phase = phaseReqInRespond
	return &Event[T, N]{Kind: EventRequestIn, ID: m.id, ProtocolIndex: m.reqInProtocolIndex, Request: payload}
}

// RespondInRequest answers a pending inbound request. On isErr, the
// substream is reset; otherwise the response is queued and the writing
// direction is closed.
func (m *Machine[T, N]) RespondInRequest(payload []byte, isErr bool) error {
	if m.done || m.kind != kindRequestIn || m.phase != phaseReqInRespond {
		return ErrRequestAlreadyClosed
	}
	if isErr {
		m.wantsRST = true
	} else {
		m.out.writeLenPrefixed(payload)
		m.wantsFIN = true
	}
	m.phase = phaseReqInClosed
	m.done = true
	return nil
}

func (m *Machine[T, N]) feedNotificationsOut(b byte) *Event[T, N] {
	if m.phase == phaseNegotiating {
		line, done, err := feedNegLine(&m.outNeg, &m.outNegHeader, b)
		if err != nil {
			m.done = true
			m.wantsRST = true
			return &Event[T, N]{Kind: EventNotificationsOutResult, ID: m.id, NotifOutIsErr: true, NotifOutErr: NotifOutErrInvalidHandshakeSize, NotifUserData: m.notifOutUserData}
		}
		if !done {
			return nil
		}
		if string(line) != m.protocolName {
			m.done = true
			m.wantsFIN = true
			return &Event[T, N]{Kind: EventNotificationsOutResult, ID: m.id, NotifOutIsErr: true, NotifOutErr: NotifOutErrProtocolNotAvailable, NotifUserData: m.notifOutUserData}
		}
		m.out.writeLenPrefixed(m.notifOutPending)
		m.phase = phaseNotifOutHandshakeRecv
		return nil
	}

	if m.phase == phaseNotifOutHandshakeRecv {
		payload, done, err := m.notifOutLP.feed(b)
		if err != nil {
			m.done = true
			m.wantsRST = true
			respErr := NotifOutErrInvalidHandshakeSize
			if err == lpErrOversize {
				respErr = NotifOutErrHandshakeTooLarge
			}
			return &Event[T, N]{Kind: EventNotificationsOutResult, ID: m.id, NotifOutIsErr: true, NotifOutErr: respErr, NotifUserData: m.notifOutUserData}
		}
		if !done {
			return nil
		}
		m.phase = phaseNotifOutOpen
		m.hasWake = false // the deadline bounds the handshake only
		return &Event[T, N]{Kind: EventNotificationsOutResult, ID: m.id, RemoteHandshake: payload}
	}

	// phaseNotifOutOpen / phaseNotifOutClosed: no further inbound bytes are
	// expected on this direction; ignore stray bytes rather than fault.
	return nil
}

// WriteNotification queues a notification on an open outbound notifications
// substream. No-op if the substream isn't open.
func (m *Machine[T, N]) WriteNotification(payload []byte) {
	if m.kind != kindNotificationsOut || m.phase != phaseNotifOutOpen {
		return
	}
	m.out.writeLenPrefixed(payload)
}

func (m *Machine[T, N]) feedNotificationsIn(b byte) *Event[T, N] {
	switch m.phase {
	case phaseNotifInRecvHandshake:
		payload, done, err := m.notifInLP.feed(b)
		if err != nil {
			m.done = true
			m.wantsRST = true
			return &Event[T, N]{Kind: EventInboundError, ID: m.id, InboundErr: InboundErrNegotiationError}
		}
		if !done {
			return nil
		}
		m.phase = phaseNotifInWaitAnswer
		return &Event[T, N]{Kind: EventNotificationsInOpen, ID: m.id, ProtocolIndex: m.notifInProtocolIndex, Handshake: payload}

	case phaseNotifInAccepted:
		payload, done, err := m.notifInLP.feed(b)
		if err != nil {
			m.done = true
			m.wantsRST = true
			closeErr := NotifInErrMalformedFrame
			if err == lpErrOversize {
				closeErr = NotifInErrOversizeNotification
			}
			return &Event[T, N]{Kind: EventNotificationsInClose, ID: m.id, CloseIsErr: true, CloseErr: closeErr}
		}
		if !done {
			return nil
		}
		m.notifInLP = newLPReader(m.notifInMaxNotification)
		return &Event[T, N]{Kind: EventNotificationIn, ID: m.id, Notification: payload}

	default:
		// phaseNotifInWaitAnswer: caller hasn't accepted/rejected yet.
		// phaseNotifInClosed: our FIN is already queued; nothing more to read.
		return nil
	}
}

// AcceptInNotifications accepts a pending inbound notifications substream,
// sending localHandshake and attaching userData for later retrieval via
// NotifUserData.
func (m *Machine[T, N]) AcceptInNotifications(localHandshake []byte, userData TNotifUd) {
	if m.kind != kindNotificationsIn || m.phase != phaseNotifInWaitAnswer {
		return
	}
	m.out.writeLenPrefixed(localHandshake)
	m.notifInUserData = userData
	m.notifInLP = newLPReader(m.notifInMaxNotification)
	m.phase = phaseNotifInAccepted
}

// RejectInNotifications rejects a pending inbound notifications substream
// by resetting it; the peer observes this as NotifOutErrRefusedHandshake.
func (m *Machine[T, N]) RejectInNotifications() {
	if m.kind != kindNotificationsIn || m.phase != phaseNotifInWaitAnswer {
		return
	}
	m.wantsRST = true
	m.done = true
	m.phase = phaseNotifInClosed
}

// CloseNotifications FINs the writing direction of an open notifications
// substream, in either role. Idempotent.
func (m *Machine[T, N]) CloseNotifications() {
	switch m.kind {
	case kindNotificationsOut:
		if m.phase == phaseNotifOutOpen {
			m.wantsFIN = true
			m.phase = phaseNotifOutClosed
		}
	case kindNotificationsIn:
		if m.phase == phaseNotifInAccepted {
			m.wantsFIN = true
			m.phase = phaseNotifInClosed
		}
	}
}

// NotifUserData returns a mutable pointer to this substream's attached
// notifications user data, for the connection's
// notifications_substream_user_data_mut operation. ok is false if this
// substream isn't a notifications substream.
func (m *Machine[T, N]) NotifUserData() (ud *TNotifUd, ok bool) {
	switch m.kind {
	case kindNotificationsOut:
		return &m.notifOutUserData, true
	case kindNotificationsIn:
		return &m.notifInUserData, true
	default:
		return nil, false
	}
}

func (m *Machine[T, N]) feedPingOut(b byte) *Event[T, N] {
	if m.phase == phaseNegotiating {
		line, done, err := feedNegLine(&m.outNeg, &m.outNegHeader, b)
		if err != nil {
			m.done = true
			m.wantsRST = true
			return &Event[T, N]{Kind: EventPingOutFailed, ID: m.id}
		}
		if !done {
			return nil
		}
		if string(line) != m.protocolName {
			m.done = true
			m.wantsFIN = true
			return &Event[T, N]{Kind: EventPingOutFailed, ID: m.id}
		}
		m.out.writeRaw(m.pingNonce[:])
		m.phase = phasePingOutWaitingPong
		return nil
	}

	m.pingRecv[m.pingRecvN] = b
	m.pingRecvN++
	if m.pingRecvN < len(m.pingRecv) {
		return nil
	}
	m.done = true
	m.wantsFIN = true
	if m.pingRecv == m.pingNonce {
		return &Event[T, N]{Kind: EventPingOutSuccess, ID: m.id}
	}
	return &Event[T, N]{Kind: EventPingOutFailed, ID: m.id}
}

func (m *Machine[T, N]) feedPingIn(b byte) *Event[T, N] {
	m.pingRecv[m.pingRecvN] = b
	m.pingRecvN++
	if m.pingRecvN == len(m.pingRecv) {
		m.out.writeRaw(m.pingRecv[:])
		m.pingRecvN = 0
	}
	return nil
}

func (m *Machine[T, N]) handlePeerEOF() *Event[T, N] {
	switch m.kind {
	case kindInboundNegotiating:
		m.done = true
		return &Event[T, N]{Kind: EventInboundError, ID: m.id, InboundErr: InboundErrNegotiationError}

	case kindRequestOut:
		m.done = true
		return &Event[T, N]{Kind: EventResponse, ID: m.id, ResponseIsErr: true, ResponseErr: RequestErrSubstreamClosed, RequestUserData: m.reqOutUserData}

	case kindRequestIn:
		if m.phase == phaseReqInRespond || m.phase == phaseReqInClosed {
			return nil // the caller may still answer; peer's FIN doesn't cancel that
		}
		m.done = true
		return &Event[T, N]{Kind: EventInboundError, ID: m.id, InboundErr: InboundErrNegotiationError}

	case kindNotificationsOut:
		if m.phase == phaseNotifOutOpen {
			return &Event[T, N]{Kind: EventNotificationsOutCloseDemanded, ID: m.id}
		}
		if m.phase == phaseNotifOutClosed {
			return nil
		}
		m.done = true
		return &Event[T, N]{Kind: EventNotificationsOutResult, ID: m.id, NotifOutIsErr: true, NotifOutErr: NotifOutErrSubstreamReset, NotifUserData: m.notifOutUserData}

	case kindNotificationsIn:
		switch m.phase {
		case phaseNotifInAccepted, phaseNotifInClosed:
			m.done = true
			return &Event[T, N]{Kind: EventNotificationsInClose, ID: m.id}
		default:
			m.done = true
			return &Event[T, N]{Kind: EventNotificationsInOpenCancel, ID: m.id}
		}

	case kindPingOut:
		m.done = true
		return &Event[T, N]{Kind: EventPingOutFailed, ID: m.id}

	case kindPingIn:
		m.done = true
		m.wantsFIN = true
		return nil
	}
	return nil
}

func (m *Machine[T, N]) handlePeerReset() *Event[T, N] {
	m.done = true
	switch m.kind {
	case kindInboundNegotiating:
		return &Event[T, N]{Kind: EventInboundError, ID: m.id, InboundErr: InboundErrNegotiationError}

	case kindRequestOut:
		return &Event[T, N]{Kind: EventResponse, ID: m.id, ResponseIsErr: true, ResponseErr: RequestErrSubstreamReset, RequestUserData: m.reqOutUserData}

	case kindRequestIn:
		return nil

	case kindNotificationsOut:
		if m.phase == phaseNotifOutHandshakeRecv {
			return &Event[T, N]{Kind: EventNotificationsOutResult, ID: m.id, NotifOutIsErr: true, NotifOutErr: NotifOutErrRefusedHandshake, NotifUserData: m.notifOutUserData}
		}
		if m.phase == phaseNotifOutOpen || m.phase == phaseNotifOutClosed {
			return &Event[T, N]{Kind: EventNotificationsOutReset, ID: m.id, NotifUserData: m.notifOutUserData}
		}
		return &Event[T, N]{Kind: EventNotificationsOutResult, ID: m.id, NotifOutIsErr: true, NotifOutErr: NotifOutErrSubstreamReset, NotifUserData: m.notifOutUserData}

	case kindNotificationsIn:
		if m.phase == phaseNotifInAccepted || m.phase == phaseNotifInClosed {
			return &Event[T, N]{Kind: EventNotificationsInClose, ID: m.id, CloseIsErr: true, CloseErr: NotifInErrReset}
		}
		return &Event[T, N]{Kind: EventNotificationsInOpenCancel, ID: m.id}

	case kindPingOut:
		return &Event[T, N]{Kind: EventPingOutFailed, ID: m.id}

	case kindPingIn:
		return nil
	}
	return nil
}

// Reset cancels this substream locally, requesting an RST to the peer.
// Neither connection flavor calls it.
func (m *Machine[T, N]) Reset() {
	if m.done {
		return
	}
	m.wantsRST = true
	m.done = true
}
