package p2pcore

import "github.com/lumenmesh/p2pcore/substream"

// SubstreamEventKind re-exports the substream package's per-substream event
// taxonomy (spec §6) unchanged.
type SubstreamEventKind = substream.EventKind

const (
	EventInboundError                  = substream.EventInboundError
	EventRequestIn                     = substream.EventRequestIn
	EventResponse                      = substream.EventResponse
	EventNotificationsInOpen           = substream.EventNotificationsInOpen
	EventNotificationsInOpenCancel     = substream.EventNotificationsInOpenCancel
	EventNotificationIn                = substream.EventNotificationIn
	EventNotificationsInClose          = substream.EventNotificationsInClose
	EventNotificationsOutResult        = substream.EventNotificationsOutResult
	EventNotificationsOutCloseDemanded = substream.EventNotificationsOutCloseDemanded
	EventNotificationsOutReset         = substream.EventNotificationsOutReset
	EventPingOutSuccess                = substream.EventPingOutSuccess
	EventPingOutFailed                 = substream.EventPingOutFailed
)

// Event is the one thing ReadWrite/PullEvent ever hands back: either the
// connection-level NewOutboundSubstreamsForbidden signal (raised once, when
// GO_AWAY arrives) or a substream-level event. Exactly one of the two
// fields is meaningful per value.
//
// SubstreamEventKind is not itself generic, and Go type aliases can't carry
// type parameters in the language version this module targets (1.21), so
// the substream event type is named directly here instead of re-aliased.
type Event[TRqUd any, TNotifUd any] struct {
	NewOutboundSubstreamsForbidden bool
	Substream                      *substream.Event[TRqUd, TNotifUd]
}
