package msselect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func feedAll(t *testing.T, d *LineDecoder, data []byte) ([]byte, bool) {
	t.Helper()
	var line []byte
	var done bool
	var err error
	for _, b := range data {
		line, done, err = d.Feed(b)
		require.NoError(t, err)
		if done {
			return line, true
		}
	}
	return line, done
}

func TestEncodeDecodeHeader(t *testing.T) {
	encoded := EncodeLine(HeaderProtocol)
	var d LineDecoder
	line, done := feedAll(t, &d, encoded)
	require.True(t, done)
	require.Equal(t, HeaderProtocol, string(line))
}

func TestEncodeDecodeNA(t *testing.T) {
	encoded := EncodeLine(NA)
	var d LineDecoder
	line, done := feedAll(t, &d, encoded)
	require.True(t, done)
	require.Equal(t, NA, string(line))
}

func TestDecoderResumesAfterLine(t *testing.T) {
	var d LineDecoder
	first := EncodeLine("proto-a")
	second := EncodeLine("proto-b")

	line, done := feedAll(t, &d, first)
	require.True(t, done)
	require.Equal(t, "proto-a", string(line))

	line, done = feedAll(t, &d, second)
	require.True(t, done)
	require.Equal(t, "proto-b", string(line))
}

func TestLineTooLong(t *testing.T) {
	big := make([]byte, MaxLineLength+10)
	for i := range big {
		big[i] = 'a'
	}
	encoded := EncodeLine(string(big))

	var d LineDecoder
	var err error
	for _, b := range encoded {
		_, _, err = d.Feed(b)
		if err != nil {
			break
		}
	}
	require.ErrorIs(t, err, ErrLineTooLong)
}
