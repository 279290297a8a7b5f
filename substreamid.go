package p2pcore

import "github.com/lumenmesh/p2pcore/substream"

// SubstreamId is the opaque, totally ordered substream identifier shared by
// both connection flavors (spec §6): a tagged union of a yamux-multiplexed
// id (single-stream) and a host-provided id (multi-stream), with
// single-stream comparing less than multi-stream.
type SubstreamId = substream.ID

// MinSubstreamId and MaxSubstreamId return the values that compare less
// than or equal to, and greater than or equal to, every SubstreamId.
func MinSubstreamId() SubstreamId { return substream.MinID() }
func MaxSubstreamId() SubstreamId { return substream.MaxID() }
