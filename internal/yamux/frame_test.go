package yamux

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Version:  ProtocolVersion,
		Type:     TypeData,
		Flags:    FlagSYN,
		StreamID: 3,
		Length:   128,
	}
	buf := make([]byte, HeaderSize)
	h.Encode(buf)

	decoded := DecodeHeader(buf)
	require.Equal(t, h, decoded)
}

func TestFlagsHas(t *testing.T) {
	f := FlagSYN | FlagFIN
	require.True(t, f.Has(FlagSYN))
	require.True(t, f.Has(FlagFIN))
	require.False(t, f.Has(FlagACK))
	require.False(t, f.Has(FlagRST))
}
