package serialdev

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RDM6300 frame layout: STX, 10 hex chars of data, 2 hex chars of checksum, ETX.
const (
	frameStart   = 0x02
	frameEnd     = 0x03
	frameData    = 10
	frameSum     = 2
	frameLength  = 1 + frameData + frameSum + 1
	readTimeout  = 100 * time.Millisecond
	readChunkLen = 32
)

var (
	errFrameLength   = errors.New("invalid frame length")
	errFrameMarkers  = errors.New("invalid frame markers")
	errFrameChecksum = errors.New("frame checksum mismatch")
)

// ParseFrame validates one RDM6300 frame and returns the tag as uppercase hex.
// The checksum is the XOR of the five data bytes.
func ParseFrame(frame []byte) (string, error) {
	if len(frame) != frameLength {
		return "", fmt.Errorf("%w: %d", errFrameLength, len(frame))
	}

	if frame[0] != frameStart || frame[frameLength-1] != frameEnd {
		return "", errFrameMarkers
	}

	dataHex := frame[1 : 1+frameData]
	sumHex := frame[1+frameData : 1+frameData+frameSum]

	data := make([]byte, frameData/2)
	if _, err := hex.Decode(data, dataHex); err != nil {
		return "", fmt.Errorf("decode frame data: %w", err)
	}

	sum := make([]byte, 1)
	if _, err := hex.Decode(sum, sumHex); err != nil {
		return "", fmt.Errorf("decode frame checksum: %w", err)
	}

	var checksum byte
	for _, b := range data {
		checksum ^= b
	}

	if checksum != sum[0] {
		return "", fmt.Errorf("%w: got %02X, want %02X", errFrameChecksum, checksum, sum[0])
	}

	return strings.ToUpper(string(dataHex)), nil
}

// decoder reassembles frames from an arbitrary byte stream.
type decoder struct {
	buf []byte
}

// feed consumes one byte and returns a frame once ETX completes it.
// Bytes outside STX..ETX are dropped.
func (d *decoder) feed(b byte) ([]byte, bool) {
	switch {
	case b == frameStart:
		d.buf = append(d.buf[:0], b)
	case len(d.buf) == 0:
		return nil, false
	default:
		d.buf = append(d.buf, b)
	}

	if b == frameEnd || len(d.buf) >= frameLength {
		frame := d.buf
		d.buf = nil

		return frame, true
	}

	return nil, false
}

// RDM6300 reads badge UIDs from the reader's UART.
type RDM6300 struct {
	port    Port
	dec     decoder
	pending []string
	onError func(error)
}

// NewRDM6300 sets a short read timeout so Read can observe cancellation.
// onError receives malformed frames and may be nil.
func NewRDM6300(port Port, onError func(error)) (*RDM6300, error) {
	if err := port.SetReadTimeout(readTimeout); err != nil {
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	return &RDM6300{
		port:    port,
		onError: onError,
	}, nil
}

// Read blocks until a valid tag is scanned or ctx is done.
func (r *RDM6300) Read(ctx context.Context) (string, error) {
	chunk := make([]byte, readChunkLen)

	for len(r.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := r.port.Read(chunk)
		if err != nil {
			return "", fmt.Errorf("read rfid: %w", err)
		}

		for _, b := range chunk[:n] {
			frame, ok := r.dec.feed(b)
			if !ok {
				continue
			}

			uid, parseErr := ParseFrame(frame)
			if parseErr != nil {
				if r.onError != nil {
					r.onError(parseErr)
				}

				continue
			}

			r.pending = append(r.pending, uid)
		}
	}

	uid := r.pending[0]
	r.pending = r.pending[1:]

	return uid, nil
}

// Close releases the port.
func (r *RDM6300) Close() error {
	return r.port.Close()
}
