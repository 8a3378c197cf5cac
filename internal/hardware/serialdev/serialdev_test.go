package serialdev

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/homee/internal/actuator"
)

// fakePort serves reads from chunks and records writes.
type fakePort struct {
	chunks  [][]byte
	written bytes.Buffer
	timeout time.Duration
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.chunks) == 0 {
		return 0, nil
	}

	n := copy(b, p.chunks[0])
	p.chunks = p.chunks[1:]

	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) { return p.written.Write(b) }
func (p *fakePort) Close() error                { p.closed = true; return nil }

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

// buildFrame encodes data the way the reader does, with a valid checksum.
func buildFrame(t *testing.T, dataHex string) []byte {
	t.Helper()

	data, err := hex.DecodeString(dataHex)
	require.NoError(t, err)

	var sum byte
	for _, b := range data {
		sum ^= b
	}

	frame := []byte{frameStart}
	frame = append(frame, dataHex...)
	frame = append(frame, fmt.Sprintf("%02X", sum)...)

	return append(frame, frameEnd)
}

func TestParseFrame(t *testing.T) {
	t.Parallel()

	uid, err := ParseFrame(buildFrame(t, "0a00aabbcc"))
	require.NoError(t, err)
	require.Equal(t, "0A00AABBCC", uid)

	corrupt := buildFrame(t, "0A00112233")
	corrupt[3] = '9'
	_, err = ParseFrame(corrupt)
	require.ErrorIs(t, err, errFrameChecksum)

	_, err = ParseFrame([]byte{frameStart, '0', frameEnd})
	require.ErrorIs(t, err, errFrameLength)

	badMarkers := buildFrame(t, "0A00112233")
	badMarkers[0] = 'X'
	_, err = ParseFrame(badMarkers)
	require.ErrorIs(t, err, errFrameMarkers)

	notHex := buildFrame(t, "0A00112233")
	notHex[5] = 'Z'
	_, err = ParseFrame(notHex)
	require.Error(t, err)
}

func TestRDM6300_Read(t *testing.T) {
	t.Parallel()

	first := buildFrame(t, "0A00AABBCC")
	second := buildFrame(t, "0A00112233")
	bad := buildFrame(t, "0A00445566")
	bad[11] = '0'
	bad[12] = '0'

	stream := append([]byte("noise"), first[:6]...)
	port := &fakePort{chunks: [][]byte{
		stream,
		first[6:],
		append(bad, second...),
	}}

	var parseErrors []error
	reader, err := NewRDM6300(port, func(err error) { parseErrors = append(parseErrors, err) })
	require.NoError(t, err)
	require.Equal(t, readTimeout, port.timeout)

	ctx := context.Background()

	uid, err := reader.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, "0A00AABBCC", uid)

	uid, err = reader.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, "0A00112233", uid)
	require.Len(t, parseErrors, 1)

	canceled, cancel := context.WithCancel(ctx)
	cancel()

	_, err = reader.Read(canceled)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, reader.Close())
	require.True(t, port.closed)
}

type failingPort struct{ fakePort }

func (p *failingPort) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestLCD(t *testing.T) {
	t.Parallel()

	port := new(fakePort)
	lcd := NewLCD(port)

	require.NoError(t, lcd.Clear(actuator.Display))
	require.NoError(t, lcd.Set(actuator.Display, "Welcome"))
	require.Equal(t, append([]byte{lcdCommand, lcdClear}, "Welcome"...), port.written.Bytes())

	require.ErrorIs(t, lcd.Set(actuator.AlertLED, "on"), actuator.ErrUnknownDevice)
	require.ErrorIs(t, NewLCD(new(failingPort)).Set(actuator.Display, "x"), io.ErrClosedPipe)
}
