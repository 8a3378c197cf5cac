package hardware

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"
)

type fakeProcess struct {
	pid        int
	executable string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 1 }
func (p fakeProcess) Executable() string { return p.executable }

func listOf(processes ...ps.Process) ProcessLister {
	return func() ([]ps.Process, error) {
		return processes, nil
	}
}

func TestPreflight(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	self := fakeProcess{pid: os.Getpid(), executable: "homee-monitor"}

	t.Run("alone", func(t *testing.T) {
		t.Parallel()

		err := Preflight(ctx, "homee-monitor", listOf(self, fakeProcess{pid: 42, executable: "pigpiod"}))
		require.NoError(t, err)
	})

	t.Run("second instance", func(t *testing.T) {
		t.Parallel()

		err := Preflight(ctx, "homee-monitor", listOf(self, fakeProcess{pid: 43, executable: "homee-monitor"}))
		require.ErrorIs(t, err, ErrAlreadyRunning)
		require.Contains(t, err.Error(), "pid 43")
	})

	t.Run("listing fails", func(t *testing.T) {
		t.Parallel()

		errList := errors.New("no procfs")
		err := Preflight(ctx, "homee-monitor", func() ([]ps.Process, error) { return nil, errList })
		require.ErrorIs(t, err, errList)
	})
}
