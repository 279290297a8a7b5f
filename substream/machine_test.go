package substream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumenmesh/p2pcore/internal/msselect"
)

func feedAll[TRqUd any, TNotifUd any](t *testing.T, m *Machine[TRqUd, TNotifUd], data []byte) *Event[TRqUd, TNotifUd] {
	t.Helper()
	consumed, ev := m.Feed(data, false, false)
	require.Equal(t, len(data), consumed)
	return ev
}

func drainAll[TRqUd any, TNotifUd any](m *Machine[TRqUd, TNotifUd]) []byte {
	var out []byte
	for m.PendingOut() > 0 {
		buf := make([]byte, m.PendingOut())
		n := m.Flush(buf)
		out = append(out, buf[:n]...)
	}
	return out
}

func protoSet() *Protocols {
	return &Protocols{
		Ping: "/ipfs/ping/1.0.0",
		Requests: []RequestResponseProtocol{
			{Name: "/req/1", InboundConfig: RequestResponseIn{MaxSize: 64}, MaxResponseSize: 64, InboundAllowed: true},
		},
		Notifications: []NotificationsProtocol{
			{Name: "/notif/1", MaxHandshakeSize: 32, MaxNotificationSize: 256},
		},
	}
}

func TestInboundNegotiatingDispatchesRequestIn(t *testing.T) {
	m := NewInboundNegotiating[int, int](SingleStreamID(1), protoSet())
	require.Greater(t, m.PendingOut(), 0)
	drainAll(m)

	feedAll(t, m, msselect.EncodeLine(msselect.HeaderProtocol))
	ev := feedAll(t, m, msselect.EncodeLine("/unknown/1"))
	require.Nil(t, ev)
	naOut := drainAll(m)
	require.Equal(t, msselect.EncodeLine(msselect.NA), naOut)

	ev = feedAll(t, m, msselect.EncodeLine("/req/1"))
	require.Nil(t, ev)
	echoOut := drainAll(m)
	require.Equal(t, msselect.EncodeLine("/req/1"), echoOut)

	ev = feedAll(t, m, []byte{3, 'a', 'b', 'c'})
	require.NotNil(t, ev)
	require.Equal(t, EventRequestIn, ev.Kind)
	require.Equal(t, []byte("abc"), ev.Request)
}

func TestRequestOutHappyPath(t *testing.T) {
	deadline := time.Unix(1000, 0)
	m := NewRequestOut[int, int](SingleStreamID(2), 0, "/req/1", false, 64, []byte("hello"), deadline, 42)
	out := drainAll(m)
	require.Equal(t, append(msselect.EncodeLine(msselect.HeaderProtocol), msselect.EncodeLine("/req/1")...), out)

	feedAll(t, m, msselect.EncodeLine(msselect.HeaderProtocol))
	ev := feedAll(t, m, msselect.EncodeLine("/req/1"))
	require.Nil(t, ev)
	require.True(t, m.TakeWantsFIN())

	reqOut := drainAll(m)
	require.Equal(t, byte(5), reqOut[0])
	require.Equal(t, "hello", string(reqOut[1:]))

	ev = feedAll(t, m, []byte{2, 'o', 'k'})
	require.NotNil(t, ev)
	require.Equal(t, EventResponse, ev.Kind)
	require.False(t, ev.ResponseIsErr)
	require.Equal(t, "ok", string(ev.Response))
	require.Equal(t, 42, ev.RequestUserData)
	require.True(t, m.Done())
}

func TestRequestOutProtocolNotAvailable(t *testing.T) {
	m := NewRequestOut[int, int](SingleStreamID(3), 0, "/req/1", false, 64, []byte("hi"), time.Unix(1, 0), 7)
	drainAll(m)
	feedAll(t, m, msselect.EncodeLine(msselect.HeaderProtocol))
	ev := feedAll(t, m, msselect.EncodeLine(msselect.NA))
	require.NotNil(t, ev)
	require.Equal(t, EventResponse, ev.Kind)
	require.True(t, ev.ResponseIsErr)
	require.Equal(t, RequestErrProtocolNotAvailable, ev.ResponseErr)
	require.True(t, m.Done())
}

func TestRequestOutTimeout(t *testing.T) {
	deadline := time.Unix(100, 0)
	m := NewRequestOut[int, int](SingleStreamID(4), 0, "/req/1", false, 64, []byte("hi"), deadline, 9)
	ev := m.Poll(time.Unix(99, 0))
	require.Nil(t, ev)
	ev = m.Poll(time.Unix(100, 0))
	require.NotNil(t, ev)
	require.True(t, ev.ResponseIsErr)
	require.Equal(t, RequestErrTimeout, ev.ResponseErr)
	require.True(t, m.TakeWantsRST())
}

func TestNotificationsHappyPathAndCloseDemanded(t *testing.T) {
	deadline := time.Unix(1000, 0)
	out := NewNotificationsOut[int, int](SingleStreamID(5), 0, "/notif/1", 32, []byte("hs-out"), deadline, 99)
	drainAll(out)
	feedAll(t, out, msselect.EncodeLine(msselect.HeaderProtocol))
	ev := feedAll(t, out, msselect.EncodeLine("/notif/1"))
	require.Nil(t, ev)
	handshakeOut := drainAll(out)
	require.Equal(t, byte(len("hs-out")), handshakeOut[0])

	ev = feedAll(t, out, []byte{5, 'h', 's', '-', 'i', 'n'})
	require.NotNil(t, ev)
	require.Equal(t, EventNotificationsOutResult, ev.Kind)
	require.False(t, ev.NotifOutIsErr)
	require.Equal(t, "hs-in", string(ev.RemoteHandshake))

	out.WriteNotification([]byte("n1"))
	sent := drainAll(out)
	require.Equal(t, byte(2), sent[0])
	require.Equal(t, "n1", string(sent[1:]))

	consumed, ev := out.Feed(nil, true, false)
	require.Equal(t, 0, consumed)
	require.NotNil(t, ev)
	require.Equal(t, EventNotificationsOutCloseDemanded, ev.Kind)
	require.False(t, out.Done())

	out.CloseNotifications()
	require.True(t, out.TakeWantsFIN())
}

func TestNotificationsInAcceptAndCloseFlow(t *testing.T) {
	m := NewInboundNegotiating[int, int](SingleStreamID(6), protoSet())
	drainAll(m)
	feedAll(t, m, msselect.EncodeLine(msselect.HeaderProtocol))
	feedAll(t, m, msselect.EncodeLine("/notif/1"))
	drainAll(m)

	ev := feedAll(t, m, []byte{2, 'h', 'i'})
	require.NotNil(t, ev)
	require.Equal(t, EventNotificationsInOpen, ev.Kind)
	require.Equal(t, "hi", string(ev.Handshake))

	m.AcceptInNotifications([]byte("ack"), 123)
	ackOut := drainAll(m)
	require.Equal(t, byte(3), ackOut[0])

	ev = feedAll(t, m, []byte{1, 'x'})
	require.NotNil(t, ev)
	require.Equal(t, EventNotificationIn, ev.Kind)
	require.Equal(t, "x", string(ev.Notification))

	m.CloseNotifications()
	require.True(t, m.TakeWantsFIN())
	m.CloseNotifications() // idempotent
	require.False(t, m.TakeWantsFIN())

	_, ev = m.Feed(nil, true, false)
	require.NotNil(t, ev)
	require.Equal(t, EventNotificationsInClose, ev.Kind)
	require.False(t, ev.CloseIsErr)
}

func TestNotificationsInRejectProducesRefusedHandshakeOnPeer(t *testing.T) {
	m := NewInboundNegotiating[int, int](SingleStreamID(7), protoSet())
	drainAll(m)
	feedAll(t, m, msselect.EncodeLine(msselect.HeaderProtocol))
	feedAll(t, m, msselect.EncodeLine("/notif/1"))
	drainAll(m)
	feedAll(t, m, []byte{2, 'h', 'i'})

	m.RejectInNotifications()
	require.True(t, m.TakeWantsRST())
	require.True(t, m.Done())

	out := NewNotificationsOut[int, int](SingleStreamID(8), 0, "/notif/1", 32, []byte("hs"), time.Unix(1000, 0), 5)
	drainAll(out)
	feedAll(t, out, msselect.EncodeLine(msselect.HeaderProtocol))
	feedAll(t, out, msselect.EncodeLine("/notif/1"))
	drainAll(out)
	_, ev := out.Feed(nil, false, true)
	require.NotNil(t, ev)
	require.Equal(t, EventNotificationsOutResult, ev.Kind)
	require.True(t, ev.NotifOutIsErr)
	require.Equal(t, NotifOutErrRefusedHandshake, ev.NotifOutErr)
}

func TestPingRoundTrip(t *testing.T) {
	nonce := [32]byte{1, 2, 3}
	pingOut := NewPingOut[int, int](SingleStreamID(9), "/ipfs/ping/1.0.0", nonce, time.Unix(1000, 0))
	drainAll(pingOut)
	feedAll(t, pingOut, msselect.EncodeLine(msselect.HeaderProtocol))
	feedAll(t, pingOut, msselect.EncodeLine("/ipfs/ping/1.0.0"))
	sentNonce := drainAll(pingOut)
	require.Equal(t, nonce[:], sentNonce)

	pingIn := NewInboundNegotiating[int, int](MultiStreamID(5), protoSet())
	drainAll(pingIn)
	feedAll(t, pingIn, msselect.EncodeLine(msselect.HeaderProtocol))
	feedAll(t, pingIn, msselect.EncodeLine("/ipfs/ping/1.0.0"))
	drainAll(pingIn)
	feedAll(t, pingIn, nonce[:])
	echoed := drainAll(pingIn)
	require.Equal(t, nonce[:], echoed)

	ev := feedAll(t, pingOut, echoed)
	require.NotNil(t, ev)
	require.Equal(t, EventPingOutSuccess, ev.Kind)
	require.True(t, pingOut.TakeWantsFIN())
}

func TestRespondInRequestAlreadyClosed(t *testing.T) {
	m := NewInboundNegotiating[int, int](SingleStreamID(10), protoSet())
	drainAll(m)
	feedAll(t, m, msselect.EncodeLine(msselect.HeaderProtocol))
	feedAll(t, m, msselect.EncodeLine("/req/1"))
	drainAll(m)
	feedAll(t, m, []byte{3, 'a', 'b', 'c'})

	_, ev := m.Feed(nil, false, true)
	require.Nil(t, ev)
	require.True(t, m.Done())

	err := m.RespondInRequest([]byte("late"), false)
	require.ErrorIs(t, err, ErrRequestAlreadyClosed)
}
