package p2pcore

import (
	"time"

	logging "github.com/ipfs/go-log/v2"
	"lukechampine.com/frand"

	"github.com/lumenmesh/p2pcore/internal/yamux"
	"github.com/lumenmesh/p2pcore/substream"
)

var log = logging.Logger("p2pcore")

// SingleStream is the single-stream flavor of spec §4.4: it owns a
// yamux-style Multiplexer over one byte pipe and drives one
// substream.Machine per multiplexed stream. It is a sans-I/O value: the
// only way to make it do anything is ReadWrite.
type SingleStream[TRqUd any, TNotifUd any] struct {
	mux       *yamux.Multiplexer
	protocols *substream.Protocols

	requestProtocols []RequestResponseProtocol
	notifProtocols   []NotificationsProtocol

	machines map[uint32]*substream.Machine[TRqUd, TNotifUd]

	newOutboundForbidden bool

	// pendingEvents is a single FIFO queue holding both substream events
	// and the connection-level NewOutboundSubstreamsForbidden signal, in
	// the order their causes were observed, so GO_AWAY arriving alongside
	// other frames in the same ReadWrite call never jumps ahead of events
	// those other frames already produced (spec §5 ordering).
	pendingEvents []Event[TRqUd, TNotifUd]

	pingProtocol     string
	pingInterval     time.Duration
	pingTimeout      time.Duration
	nextPingDeadline time.Time
	pingActive       bool
	pingStreamID     uint32
	rng              *frand.RNG

	currentNow time.Time
}

// NewSingleStream constructs a connection. client selects the dialer's odd
// yamux id space; the listener uses even ids starting at 2.
func NewSingleStream[TRqUd any, TNotifUd any](client bool, cfg Config) *SingleStream[TRqUd, TNotifUd] {
	seed := make([]byte, len(cfg.RandomnessSeed))
	copy(seed, cfg.RandomnessSeed[:])
	return &SingleStream[TRqUd, TNotifUd]{
		mux:              yamux.New(client, cfg.MaxInboundSubstreams, cfg.InitialWindow),
		protocols:        cfg.protocols(),
		requestProtocols: cfg.RequestProtocols,
		notifProtocols:   cfg.NotificationsProtocols,
		machines:         make(map[uint32]*substream.Machine[TRqUd, TNotifUd]),
		pingProtocol:     cfg.PingProtocol,
		pingInterval:     cfg.PingInterval,
		pingTimeout:      cfg.PingTimeout,
		nextPingDeadline: cfg.FirstOutPing,
		rng:              frand.NewCustom(seed, 1024, 20),
	}
}

// ReadWrite drains as many bytes as possible from in, advances every timer
// against now, writes as many outbound bytes as possible into out, and
// returns at most one event. Callers with more pending events must call
// again, optionally with an empty in. eof reports that the transport has
// no further bytes to deliver; if that lands mid yamux-frame, ReadWrite
// returns a connection-fatal error (spec §7) instead of stalling forever.
func (c *SingleStream[T, N]) ReadWrite(now time.Time, in []byte, eof bool, out []byte) (consumed int, produced int, ev *Event[T, N], wake time.Time, hasWake bool, err error) {
	c.currentNow = now
	if len(in) > 0 || eof {
		consumed, err = c.mux.ReadIn(in, eof, c)
		if err != nil {
			return consumed, 0, nil, time.Time{}, false, fatalf(err)
		}
	}

	c.pollTimers(now)

	if len(c.pendingEvents) > 0 {
		next := c.pendingEvents[0]
		c.pendingEvents = c.pendingEvents[1:]
		ev = &next
	}

	produced = c.flushOutbound(out)
	c.retireDone()
	wake, hasWake = c.nextWake()
	return consumed, produced, ev, wake, hasWake, nil
}

func (c *SingleStream[T, N]) enqueueSubstreamEvent(id uint32, ev *substream.Event[T, N]) {
	c.pendingEvents = append(c.pendingEvents, Event[T, N]{Substream: ev})
	c.noteIfPingOutcome(id, ev)
}

func (c *SingleStream[T, N]) pollTimers(now time.Time) {
	for id, m := range c.machines {
		if ev := m.Poll(now); ev != nil {
			c.enqueueSubstreamEvent(id, ev)
		}
	}
	c.maybeStartPing(now)
}

func (c *SingleStream[T, N]) maybeStartPing(now time.Time) {
	if c.pingActive || c.pingProtocol == "" || now.Before(c.nextPingDeadline) {
		return
	}
	id, err := c.mux.OpenStream()
	if err != nil {
		// GO_AWAY is already in effect; no new substream of any kind can
		// open. Leave nextPingDeadline alone, harmless to retry next call.
		return
	}
	var nonce [32]byte
	c.rng.Read(nonce[:])
	m := substream.NewPingOut[T, N](substream.SingleStreamID(id), c.pingProtocol, nonce, now.Add(c.pingTimeout))
	c.machines[id] = m
	c.pingActive = true
	c.pingStreamID = id
}

func (c *SingleStream[T, N]) noteIfPingOutcome(id uint32, ev *substream.Event[T, N]) {
	if !c.pingActive || id != c.pingStreamID {
		return
	}
	if ev.Kind == substream.EventPingOutSuccess || ev.Kind == substream.EventPingOutFailed {
		c.pingActive = false
		c.nextPingDeadline = c.lastPollTime().Add(c.pingInterval)
	}
}

// lastPollTime returns the now supplied to the ReadWrite call currently in
// progress, for noteIfPingOutcome to compute the next ping deadline from.
func (c *SingleStream[T, N]) lastPollTime() time.Time { return c.currentNow }

func (c *SingleStream[T, N]) flushOutbound(out []byte) int {
	produced := 0
	for id, m := range c.machines {
		room := c.mux.SendWindow(id)
		pending := m.PendingOut()
		n := pending
		if int(room) < n {
			n = int(room)
		}
		if n > 0 {
			buf := make([]byte, n)
			got := m.Flush(buf)
			c.mux.QueueData(id, buf[:got])
		}
		if m.PendingOut() == 0 {
			if m.PendingRST() {
				c.mux.QueueRST(id)
				m.TakeWantsRST()
			} else if m.PendingFIN() {
				c.mux.QueueFIN(id)
				m.TakeWantsFIN()
			}
		}
	}
	produced += c.mux.WriteOut(out)
	return produced
}

func (c *SingleStream[T, N]) retireDone() {
	for id, m := range c.machines {
		if m.Done() && m.PendingOut() == 0 && !m.PendingFIN() && !m.PendingRST() {
			delete(c.machines, id)
		}
	}
}

func (c *SingleStream[T, N]) nextWake() (time.Time, bool) {
	wake, has := time.Time{}, false
	if !c.pingActive && c.pingProtocol != "" {
		wake, has = c.nextPingDeadline, true
	}
	for _, m := range c.machines {
		d, ok := m.WakeDeadline()
		if !ok {
			continue
		}
		if !has || d.Before(wake) {
			wake, has = d, true
		}
	}
	return wake, has
}

// EventSink implementation: invoked synchronously from within mux.ReadIn.

func (c *SingleStream[T, N]) OnStreamOpened(id uint32, initiatedByPeer bool) {
	if !initiatedByPeer {
		return
	}
	c.machines[id] = substream.NewInboundNegotiating[T, N](substream.SingleStreamID(id), c.protocols)
}

func (c *SingleStream[T, N]) OnData(id uint32, payload []byte) {
	m, ok := c.machines[id]
	if !ok {
		return
	}
	// Feed stops at the first event it produces, so keep feeding until the
	// whole payload has been handed over.
	for len(payload) > 0 {
		consumed, ev := m.Feed(payload, false, false)
		c.mux.ConsumeCredit(id, uint32(consumed))
		payload = payload[consumed:]
		if ev != nil {
			c.enqueueSubstreamEvent(id, ev)
		}
		if consumed == 0 {
			break
		}
	}
}

func (c *SingleStream[T, N]) OnWindowUpdate(id uint32, delta uint32) {
	// mux already applied the credit; flushOutbound will notice the room.
}

func (c *SingleStream[T, N]) OnFIN(id uint32) {
	m, ok := c.machines[id]
	if !ok {
		return
	}
	_, ev := m.Feed(nil, true, false)
	if ev != nil {
		c.enqueueSubstreamEvent(id, ev)
	}
}

func (c *SingleStream[T, N]) OnRST(id uint32) {
	m, ok := c.machines[id]
	if !ok {
		return
	}
	_, ev := m.Feed(nil, false, true)
	if ev != nil {
		c.enqueueSubstreamEvent(id, ev)
	}
}

func (c *SingleStream[T, N]) OnPing(value uint32, ack bool) {
	// Yamux-layer keepalive ping, independent of the application-level ping
	// protocol (spec §4.2); the multiplexer already answers it internally.
}

func (c *SingleStream[T, N]) OnGoAway(code yamux.GoAwayCode) {
	log.Debugw("peer sent GO_AWAY", "code", code)
	c.newOutboundForbidden = true
	c.pendingEvents = append(c.pendingEvents, Event[T, N]{NewOutboundSubstreamsForbidden: true})
}

func (c *SingleStream[T, N]) machineFor(id SubstreamId) (*substream.Machine[T, N], bool) {
	if !id.IsSingleStream() {
		return nil, false
	}
	m, ok := c.machines[id.YamuxID()]
	return m, ok
}

// AddRequest opens an outbound request-response substream. See spec §4.4.
func (c *SingleStream[T, N]) AddRequest(protocolIndex int, request []byte, deadline time.Time, userData T) (SubstreamId, error) {
	if c.newOutboundForbidden {
		return SubstreamId{}, ErrNewOutboundForbidden
	}
	proto := c.requestProtocols[protocolIndex]
	if !proto.InboundConfig.Empty && len(request) > proto.InboundConfig.MaxSize {
		return SubstreamId{}, substream.AddRequestErrRequestTooLarge
	}
	id, err := c.mux.OpenStream()
	if err != nil {
		return SubstreamId{}, ErrNewOutboundForbidden
	}
	m := substream.NewRequestOut[T, N](substream.SingleStreamID(id), protocolIndex, proto.Name, proto.InboundConfig.Empty, proto.MaxResponseSize, request, deadline, userData)
	c.machines[id] = m
	return substream.SingleStreamID(id), nil
}

// OpenNotificationsSubstream opens an outbound notifications substream. See
// spec §4.4.
func (c *SingleStream[T, N]) OpenNotificationsSubstream(protocolIndex int, handshake []byte, deadline time.Time, userData N) (SubstreamId, error) {
	if c.newOutboundForbidden {
		return SubstreamId{}, ErrNewOutboundForbidden
	}
	proto := c.notifProtocols[protocolIndex]
	if len(handshake) > proto.MaxHandshakeSize {
		return SubstreamId{}, ErrHandshakeTooLarge
	}
	id, err := c.mux.OpenStream()
	if err != nil {
		return SubstreamId{}, ErrNewOutboundForbidden
	}
	m := substream.NewNotificationsOut[T, N](substream.SingleStreamID(id), protocolIndex, proto.Name, proto.MaxHandshakeSize, handshake, deadline, userData)
	c.machines[id] = m
	return substream.SingleStreamID(id), nil
}

// AcceptInNotificationsSubstream answers a pending NotificationsInOpen.
func (c *SingleStream[T, N]) AcceptInNotificationsSubstream(id SubstreamId, localHandshake []byte, userData N) {
	if m, ok := c.machineFor(id); ok {
		m.AcceptInNotifications(localHandshake, userData)
	}
}

// RejectInNotificationsSubstream answers a pending NotificationsInOpen.
func (c *SingleStream[T, N]) RejectInNotificationsSubstream(id SubstreamId) {
	if m, ok := c.machineFor(id); ok {
		m.RejectInNotifications()
	}
}

// WriteNotificationUnbounded queues a notification on an open outbound
// notifications substream. No-op, never blocks, if the substream isn't
// open.
func (c *SingleStream[T, N]) WriteNotificationUnbounded(id SubstreamId, payload []byte) {
	if m, ok := c.machineFor(id); ok {
		m.WriteNotification(payload)
	}
}

// CloseNotificationsSubstream FINs the writing direction of a notifications
// substream in either role. Idempotent.
func (c *SingleStream[T, N]) CloseNotificationsSubstream(id SubstreamId) {
	if m, ok := c.machineFor(id); ok {
		m.CloseNotifications()
	}
}

// RespondInRequest answers a pending RequestIn.
func (c *SingleStream[T, N]) RespondInRequest(id SubstreamId, response []byte, isErr bool) error {
	m, ok := c.machineFor(id)
	if !ok {
		return substream.ErrRequestAlreadyClosed
	}
	return m.RespondInRequest(response, isErr)
}

// NotificationsSubstreamUserDataMut returns a mutable pointer to the
// caller-attached user data for a notifications substream, in either role.
func (c *SingleStream[T, N]) NotificationsSubstreamUserDataMut(id SubstreamId) (*N, bool) {
	m, ok := c.machineFor(id)
	if !ok {
		return nil, false
	}
	return m.NotifUserData()
}
