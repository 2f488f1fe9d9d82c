package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/joaojeronimo/go-crc16"
)

var ErrBadFrame = errors.New("bad frame")

// Reassembler rebuilds a segmented payload from frames fed in arrival order.
type Reassembler struct {
	cur   []byte
	next  int
	count int
	crc   uint16
}

func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed consumes one frame. It returns the payload once the last frame has
// arrived and the CRC matches, nil while more frames are expected. Any
// inconsistency discards the partial payload and returns an error.
func (r *Reassembler) Feed(frame []byte) ([]byte, error) {
	if len(frame) < HeaderSize {
		r.Reset()
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrBadFrame, len(frame))
	}

	index := int(frame[0])
	count := int(frame[1])
	crc := binary.BigEndian.Uint16(frame[2:4])

	if count < 2 || index >= count {
		r.Reset()
		return nil, fmt.Errorf("%w: index=%d count=%d", ErrBadFrame, index, count)
	}

	// A first frame always starts a new payload.
	if index == 0 {
		r.Reset()
		r.count = count
		r.crc = crc
	}

	if index != r.next || count != r.count || crc != r.crc {
		expected := r.next
		r.Reset()
		return nil, fmt.Errorf("%w: got frame %d/%d, expected %d", ErrBadFrame, index, count, expected)
	}

	r.cur = append(r.cur, frame[HeaderSize:]...)
	r.next++

	if r.next < r.count {
		return nil, nil
	}

	pkt := r.cur
	r.Reset()
	if crc16.Crc16(pkt) != crc {
		return nil, fmt.Errorf("%w: crc mismatch over %d bytes", ErrBadFrame, len(pkt))
	}
	return pkt, nil
}

// Pending reports whether a partial payload is buffered
func (r *Reassembler) Pending() bool {
	return r.next > 0
}

// Reset discards any partial payload
func (r *Reassembler) Reset() {
	r.cur = nil
	r.next = 0
	r.count = 0
	r.crc = 0
}
