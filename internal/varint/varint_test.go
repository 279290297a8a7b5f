package varint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 16384, 1<<35 - 1, 1<<64 - 1}
	for _, v := range values {
		enc := AppendUvarint(nil, v)
		require.Equal(t, Size(v), len(enc))

		var dec Decoder
		var done bool
		var err error
		for i, b := range enc {
			done, err = dec.Feed(b)
			require.NoError(t, err)
			if i < len(enc)-1 {
				require.False(t, done)
			}
		}
		require.True(t, done)
		require.Equal(t, v, dec.Value())
		require.Equal(t, len(enc), dec.Len())
	}
}

func TestFeedAcrossCalls(t *testing.T) {
	enc := AppendUvarint(nil, 300)
	require.Len(t, enc, 2)

	var dec Decoder
	done, err := dec.Feed(enc[0])
	require.NoError(t, err)
	require.False(t, done)

	done, err = dec.Feed(enc[1])
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, uint64(300), dec.Value())
}

func TestOverflow(t *testing.T) {
	var dec Decoder
	for i := 0; i < MaxLebBytes; i++ {
		done, err := dec.Feed(0x80)
		require.NoError(t, err)
		require.False(t, done)
	}
	_, err := dec.Feed(0x80)
	require.ErrorIs(t, err, ErrLebOverflow)
}

func TestResetReusable(t *testing.T) {
	var dec Decoder
	_, _ = dec.Feed(0x80)
	dec.Reset()
	done, err := dec.Feed(0x01)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, uint64(1), dec.Value())
}
