package p2pcore

import (
	"time"

	"github.com/lumenmesh/p2pcore/substream"
)

// RequestResponseIn, RequestResponseProtocol and NotificationsProtocol are
// re-exported from the substream package so callers configuring a
// connection never need to import it directly.
type (
	RequestResponseIn       = substream.RequestResponseIn
	RequestResponseProtocol = substream.RequestResponseProtocol
	NotificationsProtocol   = substream.NotificationsProtocol
)

// Config configures a freshly constructed connection, per spec §6. The same
// Config shape is consumed by both NewSingleStream and NewMultiStream; the
// multi-stream flavor ignores InitialWindow, since it has no multiplexer.
type Config struct {
	MaxInboundSubstreams   int
	RequestProtocols       []RequestResponseProtocol
	NotificationsProtocols []NotificationsProtocol
	PingProtocol           string
	FirstOutPing           time.Time
	PingInterval           time.Duration
	PingTimeout            time.Duration
	RandomnessSeed         [32]byte

	// InitialWindow overrides the yamux-style multiplexer's per-substream
	// flow-control window; 0 selects the multiplexer's own default.
	InitialWindow uint32
}

func (c *Config) protocols() *substream.Protocols {
	return &substream.Protocols{
		Ping:          c.PingProtocol,
		Requests:      c.RequestProtocols,
		Notifications: c.NotificationsProtocols,
	}
}
