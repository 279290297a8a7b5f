package p2pcore

import (
	"time"

	"github.com/lumenmesh/p2pcore/substream"
)

// MultiStream is the multi-stream flavor of spec §4.5: the same substream
// state machines as SingleStream, but with no multiplexer — the host
// provides one independent byte pipe per substream (e.g. one WebRTC data
// channel each), addressed by a connection-assigned id.
//
// AddSubstream is the host's entry point for a pipe IT opened (inbound, or
// a reply to one of its own dial attempts it hasn't yet identified).
// Outbound operations (AddRequest, OpenNotificationsSubstream, and this
// connection's own ping-out scheduling) instead allocate their id directly,
// the same way SingleStream allocates a yamux id via OpenStream — wiring an
// actual pipe to that id is the host's responsibility, outside this core's
// scope per spec §1.
type MultiStream[TRqUd any, TNotifUd any] struct {
	protocols *substream.Protocols

	requestProtocols []RequestResponseProtocol
	notifProtocols   []NotificationsProtocol

	nextID   uint64
	machines map[uint64]*substream.Machine[TRqUd, TNotifUd]

	pendingEvents []substream.Event[TRqUd, TNotifUd]

	pingProtocol     string
	pingInterval     time.Duration
	pingTimeout      time.Duration
	nextPingDeadline time.Time
	pingActive       bool
	pingStreamID     uint64
	rng              randSource

	currentNow time.Time
}

// randSource is the minimal seam MultiStream needs for ping nonces; kept
// separate from SingleStream's frand.RNG field so this flavor doesn't have
// to carry a multiplexer-flavored zero value around.
type randSource interface {
	Read(p []byte) (int, error)
}

// NewMultiStream constructs a connection. rng supplies ping-out nonces;
// pass a seeded lukechampine.com/frand.RNG built from Config.RandomnessSeed
// to match SingleStream's determinism.
func NewMultiStream[TRqUd any, TNotifUd any](cfg Config, rng randSource) *MultiStream[TRqUd, TNotifUd] {
	return &MultiStream[TRqUd, TNotifUd]{
		protocols:        cfg.protocols(),
		requestProtocols: cfg.RequestProtocols,
		notifProtocols:   cfg.NotificationsProtocols,
		machines:         make(map[uint64]*substream.Machine[TRqUd, TNotifUd]),
		pingProtocol:     cfg.PingProtocol,
		pingInterval:     cfg.PingInterval,
		pingTimeout:      cfg.PingTimeout,
		nextPingDeadline: cfg.FirstOutPing,
		rng:              rng,
	}
}

// AddSubstream registers a host-opened pipe whose protocol isn't known yet
// and returns the id the host must use with SubstreamReadWrite.
func (c *MultiStream[T, N]) AddSubstream() SubstreamId {
	id := c.nextID
	c.nextID++
	c.machines[id] = substream.NewInboundNegotiating[T, N](substream.MultiStreamID(id), c.protocols)
	return substream.MultiStreamID(id)
}

// SubstreamReadWrite drives one substream's bytes. eof/reset report the
// host pipe's own half-close/reset; wantsFIN/wantsRST tell the host to
// propagate a matching half-close/reset to its real pipe for id.
func (c *MultiStream[T, N]) SubstreamReadWrite(now time.Time, id SubstreamId, in []byte, eof bool, reset bool, out []byte) (consumed int, produced int, wantsFIN bool, wantsRST bool, wake time.Time, hasWake bool, err error) {
	c.currentNow = now
	m, ok := c.machineFor(id)
	if !ok {
		return 0, 0, false, false, time.Time{}, false, ErrUnknownSubstream
	}

	if len(in) > 0 || eof || reset {
		n, ev := m.Feed(in, eof, reset)
		consumed = n
		if ev != nil {
			c.pendingEvents = append(c.pendingEvents, *ev)
			c.noteIfPingOutcome(id.HostID(), ev)
		}
	}
	if tev := m.Poll(now); tev != nil {
		c.pendingEvents = append(c.pendingEvents, *tev)
		c.noteIfPingOutcome(id.HostID(), tev)
	}

	produced = m.Flush(out)
	if m.PendingOut() == 0 {
		if m.PendingRST() {
			wantsRST = true
			m.TakeWantsRST()
		} else if m.PendingFIN() {
			wantsFIN = true
			m.TakeWantsFIN()
		}
	}

	if m.Done() && m.PendingOut() == 0 {
		delete(c.machines, id.HostID())
	} else {
		wake, hasWake = m.WakeDeadline()
	}
	return consumed, produced, wantsFIN, wantsRST, wake, hasWake, nil
}

// PullEvent advances every substream's own timer against now and returns
// the next pending event, or nil if none is ready.
func (c *MultiStream[T, N]) PullEvent(now time.Time) *Event[T, N] {
	c.currentNow = now
	for id, m := range c.machines {
		if ev := m.Poll(now); ev != nil {
			c.pendingEvents = append(c.pendingEvents, *ev)
			c.noteIfPingOutcome(id, ev)
		}
	}
	c.maybeStartPing(now)
	if len(c.pendingEvents) == 0 {
		return nil
	}
	next := c.pendingEvents[0]
	c.pendingEvents = c.pendingEvents[1:]
	return &Event[T, N]{Substream: &next}
}

func (c *MultiStream[T, N]) maybeStartPing(now time.Time) {
	if c.pingActive || c.pingProtocol == "" || now.Before(c.nextPingDeadline) || c.rng == nil {
		return
	}
	id := c.nextID
	c.nextID++
	var nonce [32]byte
	c.rng.Read(nonce[:])
	c.machines[id] = substream.NewPingOut[T, N](substream.MultiStreamID(id), c.pingProtocol, nonce, now.Add(c.pingTimeout))
	c.pingActive = true
	c.pingStreamID = id
}

func (c *MultiStream[T, N]) noteIfPingOutcome(id uint64, ev *substream.Event[T, N]) {
	if !c.pingActive || id != c.pingStreamID {
		return
	}
	if ev.Kind == substream.EventPingOutSuccess || ev.Kind == substream.EventPingOutFailed {
		c.pingActive = false
		c.nextPingDeadline = c.currentNow.Add(c.pingInterval)
	}
}

func (c *MultiStream[T, N]) machineFor(id SubstreamId) (*substream.Machine[T, N], bool) {
	if id.IsSingleStream() {
		return nil, false
	}
	m, ok := c.machines[id.HostID()]
	return m, ok
}

// AddRequest opens an outbound request-response substream; the host must
// separately wire a real pipe addressed by the returned id.
func (c *MultiStream[T, N]) AddRequest(protocolIndex int, request []byte, deadline time.Time, userData T) (SubstreamId, error) {
	proto := c.requestProtocols[protocolIndex]
	if !proto.InboundConfig.Empty && len(request) > proto.InboundConfig.MaxSize {
		return SubstreamId{}, substream.AddRequestErrRequestTooLarge
	}
	id := c.nextID
	c.nextID++
	m := substream.NewRequestOut[T, N](substream.MultiStreamID(id), protocolIndex, proto.Name, proto.InboundConfig.Empty, proto.MaxResponseSize, request, deadline, userData)
	c.machines[id] = m
	return substream.MultiStreamID(id), nil
}

// OpenNotificationsSubstream opens an outbound notifications substream; the
// host must separately wire a real pipe addressed by the returned id.
func (c *MultiStream[T, N]) OpenNotificationsSubstream(protocolIndex int, handshake []byte, deadline time.Time, userData N) (SubstreamId, error) {
	proto := c.notifProtocols[protocolIndex]
	if len(handshake) > proto.MaxHandshakeSize {
		return SubstreamId{}, ErrHandshakeTooLarge
	}
	id := c.nextID
	c.nextID++
	m := substream.NewNotificationsOut[T, N](substream.MultiStreamID(id), protocolIndex, proto.Name, proto.MaxHandshakeSize, handshake, deadline, userData)
	c.machines[id] = m
	return substream.MultiStreamID(id), nil
}

// AcceptInNotificationsSubstream answers a pending NotificationsInOpen.
func (c *MultiStream[T, N]) AcceptInNotificationsSubstream(id SubstreamId, localHandshake []byte, userData N) {
	if m, ok := c.machineFor(id); ok {
		m.AcceptInNotifications(localHandshake, userData)
	}
}

// RejectInNotificationsSubstream answers a pending NotificationsInOpen.
func (c *MultiStream[T, N]) RejectInNotificationsSubstream(id SubstreamId) {
	if m, ok := c.machineFor(id); ok {
		m.RejectInNotifications()
	}
}

// WriteNotificationUnbounded queues a notification on an open outbound
// notifications substream.
func (c *MultiStream[T, N]) WriteNotificationUnbounded(id SubstreamId, payload []byte) {
	if m, ok := c.machineFor(id); ok {
		m.WriteNotification(payload)
	}
}

// CloseNotificationsSubstream FINs the writing direction of a notifications
// substream in either role. Idempotent.
func (c *MultiStream[T, N]) CloseNotificationsSubstream(id SubstreamId) {
	if m, ok := c.machineFor(id); ok {
		m.CloseNotifications()
	}
}

// RespondInRequest answers a pending RequestIn.
func (c *MultiStream[T, N]) RespondInRequest(id SubstreamId, response []byte, isErr bool) error {
	m, ok := c.machineFor(id)
	if !ok {
		return substream.ErrRequestAlreadyClosed
	}
	return m.RespondInRequest(response, isErr)
}

// NotificationsSubstreamUserDataMut returns a mutable pointer to the
// caller-attached user data for a notifications substream, in either role.
func (c *MultiStream[T, N]) NotificationsSubstreamUserDataMut(id SubstreamId) (*N, bool) {
	m, ok := c.machineFor(id)
	if !ok {
		return nil, false
	}
	return m.NotifUserData()
}
