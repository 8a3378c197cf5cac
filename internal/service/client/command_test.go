package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

// fakeCaller keeps a light-system flag and counts status reads.
type fakeCaller struct {
	mu       sync.Mutex
	enabled  bool
	reads    int
	failNext bool
}

func (f *fakeCaller) snapshot() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"phase":         "running",
		"light_enabled": f.enabled,
	})
}

func (f *fakeCaller) GetStatus(context.Context) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++

	if f.failNext {
		f.failNext = false

		return nil, errors.New("unavailable")
	}

	return f.snapshot()
}

func (f *fakeCaller) SetLightEnabled(_ context.Context, enabled bool) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.enabled = enabled

	return f.snapshot()
}

func (f *fakeCaller) ToggleLight(context.Context) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.enabled = !f.enabled

	return f.snapshot()
}

// decodeAll reads every JSON document printed to buf.
func decodeAll(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var docs []map[string]any

	dec := json.NewDecoder(buf)

	for {
		var doc map[string]any

		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return docs
		}

		require.NoError(t, err)

		docs = append(docs, doc)
	}
}

func TestSetLight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		command string
		initial bool
		want    bool
	}{
		{command: "on", initial: false, want: true},
		{command: "off", initial: true, want: false},
		{command: "toggle", initial: true, want: false},
		{command: "toggle", initial: false, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			t.Parallel()

			var (
				c   = &fakeCaller{enabled: tt.initial}
				buf bytes.Buffer
			)

			require.NoError(t, setLight(t.Context(), c, tt.command, &buf))

			docs := decodeAll(t, &buf)
			require.Len(t, docs, 1)
			require.Equal(t, tt.want, docs[0]["light_enabled"])
			require.Equal(t, tt.want, c.enabled)
		})
	}
}

func TestSetLight_UnknownCommand(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.Error(t, setLight(t.Context(), &fakeCaller{}, "dim", &buf))
	require.Zero(t, buf.Len())
}

func TestStatus(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	c := &fakeCaller{enabled: true}
	require.NoError(t, status(t.Context(), c, &buf))

	docs := decodeAll(t, &buf)
	require.Len(t, docs, 1)
	require.Equal(t, "running", docs[0]["phase"])

	c.failNext = true
	require.Error(t, status(t.Context(), c, &buf))
}

func TestWatch(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		var buf bytes.Buffer

		c := &fakeCaller{failNext: true}

		ctx, cancel := context.WithTimeout(t.Context(), 2500*time.Millisecond)
		defer cancel()

		require.NoError(t, watch(ctx, c, time.Second, &buf))

		// Polls at 0s (failed), 1s and 2s.
		require.Equal(t, 3, c.reads)
		require.Len(t, decodeAll(t, &buf), 2)
	})
}
