// Package codec turns application commands into transport writes.
//
// A command is sent as the bytes of its text. Payloads that fit in a single
// write (MaxWriteSize) go out unchanged; larger ones are segmented into
// framed chunks that a Reassembler on the receiving side puts back together.
//
// Segmented frame layout:
//
//	+-------+-------+-----------+----------------------+
//	| index | count | crc16 (BE)| data (<= max-4 bytes) |
//	+-------+-------+-----------+----------------------+
//
// index is 0-based, count is the total number of frames, and crc16 is the
// CRC of the whole payload, repeated in every frame.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/joaojeronimo/go-crc16"
)

const (
	// MaxWriteSize is the largest single write the transport accepts.
	MaxWriteSize = 180

	// HeaderSize is the size of the segmented frame header.
	HeaderSize = 4

	// MaxFrames is the largest number of frames a single payload can be split into.
	MaxFrames = 255

	// KeepAliveCommand is the "set time" message sent periodically while a session is ready.
	KeepAliveCommand = "55AA0600080D170b061718030276"
)

var (
	ErrEmptyCommand     = errors.New("empty command")
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrInvalidWriteSize = errors.New("invalid write size")
)

// Encode converts a command into its wire payload.
func Encode(command string) ([]byte, error) {
	if command == "" {
		return nil, ErrEmptyCommand
	}
	return []byte(command), nil
}

// Chunk is one transport write worth of a payload.
type Chunk struct {
	Index  int
	Count  int
	CRC    uint16
	Framed bool   // false when the payload fit in a single write
	Data   []byte // slice of the original payload carried by this write
}

// Bytes returns the exact bytes written to the transport for this chunk.
func (c Chunk) Bytes() []byte {
	if !c.Framed {
		return c.Data
	}
	frame := make([]byte, HeaderSize+len(c.Data))
	frame[0] = byte(c.Index)
	frame[1] = byte(c.Count)
	binary.BigEndian.PutUint16(frame[2:4], c.CRC)
	copy(frame[HeaderSize:], c.Data)
	return frame
}

// Split decides whether payload fits in one write of at most maxWrite bytes
// and segments it otherwise. The Data of the returned chunks covers payload
// in order with no gaps or overlaps, and every chunk's Bytes() is at most
// maxWrite long.
func Split(payload []byte, maxWrite int) ([]Chunk, error) {
	if maxWrite <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWriteSize, maxWrite)
	}
	if len(payload) <= maxWrite {
		return []Chunk{{Index: 0, Count: 1, Data: payload}}, nil
	}

	body := maxWrite - HeaderSize
	if body <= 0 {
		return nil, fmt.Errorf("%w: %d bytes leaves no room after the %d-byte header", ErrInvalidWriteSize, maxWrite, HeaderSize)
	}

	count := (len(payload) + body - 1) / body
	if count > MaxFrames {
		return nil, fmt.Errorf("%w: %d bytes needs %d frames, limit is %d", ErrPayloadTooLarge, len(payload), count, MaxFrames)
	}

	crc := crc16.Crc16(payload)
	chunks := make([]Chunk, 0, count)
	for i := 0; i < count; i++ {
		start := i * body
		end := start + body
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, Chunk{
			Index:  i,
			Count:  count,
			CRC:    crc,
			Framed: true,
			Data:   payload[start:end],
		})
	}
	return chunks, nil
}

// Frames encodes command and returns the writes to issue, in order.
func Frames(command string, maxWrite int) ([][]byte, error) {
	payload, err := Encode(command)
	if err != nil {
		return nil, err
	}
	chunks, err := Split(payload, maxWrite)
	if err != nil {
		return nil, err
	}
	frames := make([][]byte, len(chunks))
	for i, c := range chunks {
		frames[i] = c.Bytes()
	}
	return frames, nil
}
