package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func framesOf(t *testing.T, payload []byte, maxWrite int) [][]byte {
	t.Helper()
	chunks, err := Split(payload, maxWrite)
	require.NoError(t, err)
	out := make([][]byte, len(chunks))
	for i, c := range chunks {
		out[i] = c.Bytes()
	}
	return out
}

func TestReassembler_OutOfOrder(t *testing.T) {
	frames := framesOf(t, bytes.Repeat([]byte{0xAB}, 100), 40)
	require.Len(t, frames, 3)

	r := NewReassembler()
	_, err := r.Feed(frames[0])
	require.NoError(t, err)

	_, err = r.Feed(frames[2])
	assert.ErrorIs(t, err, ErrBadFrame, "skipped frame MUST be rejected")
	assert.False(t, r.Pending(), "partial payload MUST be discarded on error")
}

func TestReassembler_CorruptedData(t *testing.T) {
	frames := framesOf(t, bytes.Repeat([]byte{0x01}, 100), 40)
	frames[1][HeaderSize] ^= 0xFF

	r := NewReassembler()
	var err error
	for _, f := range frames {
		_, err = r.Feed(f)
	}
	assert.ErrorIs(t, err, ErrBadFrame, "crc mismatch MUST be reported on the last frame")
}

func TestReassembler_RestartsOnFirstFrame(t *testing.T) {
	first := framesOf(t, bytes.Repeat([]byte{'a'}, 100), 40)
	second := framesOf(t, bytes.Repeat([]byte{'b'}, 60), 40)

	r := NewReassembler()
	_, err := r.Feed(first[0])
	require.NoError(t, err)

	var got []byte
	for _, f := range second {
		got, err = r.Feed(f)
		require.NoError(t, err)
	}
	assert.Equal(t, bytes.Repeat([]byte{'b'}, 60), got)
}

func TestReassembler_MalformedHeaders(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"too short", []byte{0, 2, 0}},
		{"single frame count", []byte{0, 1, 0, 0, 'x'}},
		{"index past count", []byte{3, 2, 0, 0, 'x'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReassembler().Feed(tt.frame)
			assert.ErrorIs(t, err, ErrBadFrame)
		})
	}
}
