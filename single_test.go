package p2pcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumenmesh/p2pcore/substream"
)

func TestAddRequestRejectsOversizePayload(t *testing.T) {
	cfg := baseConfig()
	cfg.RequestProtocols = []RequestResponseProtocol{
		{Name: "p", InboundConfig: RequestResponseIn{MaxSize: 4}, MaxResponseSize: 64, InboundAllowed: true},
	}
	alice := NewSingleStream[struct{}, struct{}](true, cfg)
	_, err := alice.AddRequest(0, []byte("way too long"), time.Unix(5, 0), struct{}{})
	require.Equal(t, substream.AddRequestErrRequestTooLarge, err)
}

func TestOpenNotificationsRejectsOversizeHandshake(t *testing.T) {
	cfg := baseConfig()
	cfg.NotificationsProtocols = []NotificationsProtocol{
		{Name: "p", MaxHandshakeSize: 4, MaxNotificationSize: 64},
	}
	alice := NewSingleStream[struct{}, struct{}](true, cfg)
	_, err := alice.OpenNotificationsSubstream(0, []byte("way too long"), time.Unix(5, 0), struct{}{})
	require.Equal(t, ErrHandshakeTooLarge, err)
}

func TestGoAwayForbidsNewOutboundSubstreams(t *testing.T) {
	cfg := baseConfig()
	cfg.RequestProtocols = []RequestResponseProtocol{
		{Name: "p", InboundConfig: RequestResponseIn{MaxSize: 64}, MaxResponseSize: 64, InboundAllowed: true},
	}
	alice := NewSingleStream[struct{}, struct{}](true, cfg)
	bob := NewSingleStream[struct{}, struct{}](false, cfg)
	now := time.Unix(0, 0)

	bob.mux.QueueGoAway(0)
	buf := make([]byte, 256)
	produced := bob.mux.WriteOut(buf)
	require.Greater(t, produced, 0)

	var forbidden bool
	for round := 0; round < 4 && !forbidden; round++ {
		_, _, ev, _, _, err := alice.ReadWrite(now, buf[:produced], false, make([]byte, 64))
		require.NoError(t, err)
		produced = 0
		if ev != nil && ev.NewOutboundSubstreamsForbidden {
			forbidden = true
		}
	}
	require.True(t, forbidden)

	_, err := alice.AddRequest(0, []byte("x"), now.Add(time.Second), struct{}{})
	require.Equal(t, ErrNewOutboundForbidden, err)
}

func TestRespondInRequestOnUnknownSubstream(t *testing.T) {
	cfg := baseConfig()
	alice := NewSingleStream[struct{}, struct{}](true, cfg)
	err := alice.RespondInRequest(MaxSubstreamId(), []byte("x"), false)
	require.Equal(t, substream.ErrRequestAlreadyClosed, err)
}

func TestSubstreamIdOrdering(t *testing.T) {
	single := substream.SingleStreamID(7)
	multi := substream.MultiStreamID(1)
	require.True(t, single.Compare(multi) < 0)
	require.True(t, MinSubstreamId().Compare(single) <= 0)
	require.True(t, MaxSubstreamId().Compare(multi) >= 0)
}
