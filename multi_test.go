package p2pcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fixedRNG is a deterministic randSource for multi-stream ping nonces.
type fixedRNG struct{ b byte }

func (r *fixedRNG) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
	}
	return len(p), nil
}

func multiCfg() Config {
	return Config{PingProtocol: "", MaxInboundSubstreams: 16}
}

func TestMultiStreamAddSubstreamReturnsMultiStreamID(t *testing.T) {
	cfg := multiCfg()
	cfg.RequestProtocols = []RequestResponseProtocol{
		{Name: "req", InboundConfig: RequestResponseIn{MaxSize: 64}, MaxResponseSize: 64, InboundAllowed: true},
	}
	host := NewMultiStream[struct{}, struct{}](cfg, &fixedRNG{})
	id := host.AddSubstream()
	require.False(t, id.IsSingleStream())
}

func TestMultiStreamRequestRoundTrip(t *testing.T) {
	cfg := multiCfg()
	cfg.RequestProtocols = []RequestResponseProtocol{
		{Name: "req-proto", InboundConfig: RequestResponseIn{MaxSize: 64}, MaxResponseSize: 64, InboundAllowed: true},
	}
	dialer := NewMultiStream[struct{}, struct{}](cfg, &fixedRNG{})
	listener := NewMultiStream[struct{}, struct{}](cfg, &fixedRNG{})
	now := time.Unix(0, 0)

	dialerID, err := dialer.AddRequest(0, []byte("ping"), now.Add(5*time.Second), struct{}{})
	require.NoError(t, err)
	listenerID := listener.AddSubstream()

	var toListener, toDialer []byte
	var gotResponse bool
	dialerBuf := make([]byte, 1024)
	listenerBuf := make([]byte, 1024)

	for round := 0; round < 32 && !gotResponse; round++ {
		_, produced, _, _, _, _, err := dialer.SubstreamReadWrite(now, dialerID, toDialer, false, false, dialerBuf)
		require.NoError(t, err)
		toDialer = nil
		if produced > 0 {
			toListener = append(toListener, dialerBuf[:produced]...)
		}

		_, produced, _, _, _, _, err = listener.SubstreamReadWrite(now, listenerID, toListener, false, false, listenerBuf)
		require.NoError(t, err)
		toListener = nil
		if produced > 0 {
			toDialer = append(toDialer, listenerBuf[:produced]...)
		}

		if ev := listener.PullEvent(now); ev != nil && ev.Substream != nil && ev.Substream.Kind == EventRequestIn {
			require.NoError(t, listener.RespondInRequest(ev.Substream.ID, []byte("pong"), false))
		}
		if ev := dialer.PullEvent(now); ev != nil && ev.Substream != nil && ev.Substream.Kind == EventResponse {
			require.Equal(t, "pong", string(ev.Substream.Response))
			gotResponse = true
		}
	}
	require.True(t, gotResponse)
}
