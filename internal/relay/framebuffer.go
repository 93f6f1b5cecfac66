package relay

// FrameSize is one outbound audio frame: 20ms batches of 160-byte
// mu-law chunks at 8kHz.
const FrameSize = 20 * 160

// FrameBuffer accumulates arbitrarily sized audio chunks and slices
// them into exact FrameSize frames. Consumed bytes are tracked with a
// read offset and the tail is compacted to the front on the next
// write, so long calls do not pay for whole-buffer reslicing. Not
// safe for concurrent use; each session's reader owns its buffer.
type FrameBuffer struct {
	buf []byte
	off int
}

// Write appends a chunk to the buffer.
func (b *FrameBuffer) Write(chunk []byte) {
	if b.off > 0 {
		n := copy(b.buf, b.buf[b.off:])
		b.buf = b.buf[:n]
		b.off = 0
	}
	b.buf = append(b.buf, chunk...)
}

// Next returns the next full frame, or false when fewer than
// FrameSize bytes remain. The frame is a copy; the buffer's storage
// is reused across writes.
func (b *FrameBuffer) Next() ([]byte, bool) {
	if len(b.buf)-b.off < FrameSize {
		return nil, false
	}
	frame := make([]byte, FrameSize)
	copy(frame, b.buf[b.off:])
	b.off += FrameSize
	if b.off == len(b.buf) {
		b.buf = b.buf[:0]
		b.off = 0
	}
	return frame, true
}

// Pending returns the number of buffered bytes not yet emitted,
// always less than FrameSize between Write/Next rounds.
func (b *FrameBuffer) Pending() int {
	return len(b.buf) - b.off
}
