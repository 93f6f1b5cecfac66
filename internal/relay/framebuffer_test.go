package relay

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameBufferEmitsExactFrames(t *testing.T) {
	var fb FrameBuffer

	// Concatenated input of N bytes must yield floor(N/FrameSize)
	// frames of exactly FrameSize bytes.
	sizes := []int{500, 3200, 4000, 7, 2900}
	total := 0
	frames := 0
	for _, size := range sizes {
		fb.Write(make([]byte, size))
		total += size
		for {
			frame, ok := fb.Next()
			if !ok {
				break
			}
			frames++
			assert.Len(t, frame, FrameSize)
		}
		assert.Less(t, fb.Pending(), FrameSize)
	}

	assert.Equal(t, total/FrameSize, frames)
	assert.Equal(t, total%FrameSize, fb.Pending())
}

func TestFrameBufferChunkingScenario(t *testing.T) {
	var fb FrameBuffer

	// Three 1000-byte payloads stay below the frame threshold.
	for i := 0; i < 3; i++ {
		fb.Write(make([]byte, 1000))
		_, ok := fb.Next()
		require.False(t, ok, "no frame before 3200 bytes accumulated")
	}

	// The fourth payload crosses it: one frame out, 100 bytes held.
	fb.Write(make([]byte, 300))
	frame, ok := fb.Next()
	require.True(t, ok)
	assert.Len(t, frame, FrameSize)

	_, ok = fb.Next()
	assert.False(t, ok)
	assert.Equal(t, 100, fb.Pending())
}

func TestFrameBufferPreservesByteOrder(t *testing.T) {
	var fb FrameBuffer

	data := make([]byte, FrameSize*2+17)
	for i := range data {
		data[i] = byte(i % 251)
	}
	// Write in uneven slices to exercise the compaction path.
	fb.Write(data[:100])
	first, ok := fb.Next()
	require.False(t, ok, "unexpected frame from 100 bytes")
	fb.Write(data[100 : FrameSize+50])
	first, ok = fb.Next()
	require.True(t, ok)
	fb.Write(data[FrameSize+50:])
	second, ok := fb.Next()
	require.True(t, ok)

	assert.True(t, bytes.Equal(first, data[:FrameSize]))
	assert.True(t, bytes.Equal(second, data[FrameSize:2*FrameSize]))
	assert.Equal(t, 17, fb.Pending())
}
