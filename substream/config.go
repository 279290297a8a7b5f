package substream

// RequestResponseIn describes how an inbound request must be shaped, per
// spec §6: either completely empty (not even a length prefix) or a
// varint-prefixed payload bounded by MaxSize.
type RequestResponseIn struct {
	Empty   bool
	MaxSize int
}

// MaxSizeOrZero returns 0 for an Empty configuration, matching spec §4.1's
// ConfigRequestResponseIn::max_size semantics.
func (c RequestResponseIn) MaxSizeOrZero() int {
	if c.Empty {
		return 0
	}
	return c.MaxSize
}

// RequestResponseProtocol configures one request-response protocol.
type RequestResponseProtocol struct {
	Name            string
	InboundConfig   RequestResponseIn
	MaxResponseSize int
	InboundAllowed  bool
}

// NotificationsProtocol configures one notifications protocol.
type NotificationsProtocol struct {
	Name                string
	MaxHandshakeSize    int
	MaxNotificationSize int
}

// Protocols is the union of protocol names a substream's inbound
// negotiation phase will accept, per spec §4.3: "the union of: configured
// ping protocol, configured request protocols with inbound_allowed=true,
// and configured notification protocols."
type Protocols struct {
	Ping          string
	Requests      []RequestResponseProtocol
	Notifications []NotificationsProtocol
}

// matchInbound reports whether name is accepted for an inbound substream,
// and if so which sub-machine it dispatches into.
func (p *Protocols) matchInbound(name string) (kind inboundMatchKind, index int, ok bool) {
	if name == p.Ping {
		return inboundMatchPing, 0, true
	}
	for i, r := range p.Requests {
		if r.InboundAllowed && r.Name == name {
			return inboundMatchRequest, i, true
		}
	}
	for i, n := range p.Notifications {
		if n.Name == name {
			return inboundMatchNotifications, i, true
		}
	}
	return 0, 0, false
}

type inboundMatchKind uint8

const (
	inboundMatchPing inboundMatchKind = iota
	inboundMatchRequest
	inboundMatchNotifications
)
