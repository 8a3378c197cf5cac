package gpio

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/homee/internal/actuator"
)

// fakeLine is an in-memory pin. Reads come from script when set, else from state.
type fakeLine struct {
	mu      sync.Mutex
	state   rpio.State
	output  bool
	pullUp  bool
	script  []rpio.State
	reads   int
	history []rpio.State
}

func (l *fakeLine) Output() { l.mu.Lock(); l.output = true; l.mu.Unlock() }
func (l *fakeLine) Input()  { l.mu.Lock(); l.output = false; l.mu.Unlock() }
func (l *fakeLine) PullUp() { l.mu.Lock(); l.pullUp = true; l.state = rpio.High; l.mu.Unlock() }
func (l *fakeLine) High()   { l.write(rpio.High) }
func (l *fakeLine) Low()    { l.write(rpio.Low) }

func (l *fakeLine) write(s rpio.State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state = s
	l.history = append(l.history, s)
}

func (l *fakeLine) set(s rpio.State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state = s
}

func (l *fakeLine) Read() rpio.State {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.script) == 0 {
		return l.state
	}

	s := l.script[min(l.reads, len(l.script)-1)]
	l.reads++

	return s
}

func TestOutputs(t *testing.T) {
	t.Parallel()

	led := new(fakeLine)
	relay := new(fakeLine)
	out := NewOutputs(map[actuator.DeviceID]Line{
		actuator.MotionLED: led,
		actuator.RoomLight: relay,
	})

	require.True(t, led.output)
	require.Equal(t, rpio.Low, led.state)

	require.NoError(t, out.Set(actuator.RoomLight, actuator.ValueOn))
	require.Equal(t, rpio.High, relay.state)

	require.NoError(t, out.Set(actuator.RoomLight, "off"))
	require.Equal(t, rpio.Low, relay.state)

	require.NoError(t, out.Set(actuator.MotionLED, actuator.ValueOn))
	require.NoError(t, out.Clear(actuator.MotionLED))
	require.Equal(t, rpio.Low, led.state)

	require.ErrorIs(t, out.Set(actuator.Display, "hello"), actuator.ErrUnknownDevice)
}

func TestDistanceCM(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 17.15, DistanceCM(time.Millisecond, DefaultCMPerSecond), 1e-9)
	require.InDelta(t, 0.0, DistanceCM(0, DefaultCMPerSecond), 1e-9)
	require.InDelta(t, 34.3, DistanceCM(2*time.Millisecond, DefaultCMPerSecond), 1e-9)
}

func TestHCSR04_Measure(t *testing.T) {
	t.Parallel()

	trigger := new(fakeLine)
	echo := &fakeLine{script: []rpio.State{rpio.Low, rpio.Low, rpio.High, rpio.High, rpio.Low}}
	ranger := NewHCSR04(trigger, echo, 0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	distance, err := ranger.Measure(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, distance, 0.0)
	require.Equal(t, []rpio.State{rpio.Low, rpio.Low, rpio.High, rpio.Low}, trigger.history)
}

func TestHCSR04_NoEcho(t *testing.T) {
	t.Parallel()

	ranger := NewHCSR04(new(fakeLine), new(fakeLine), DefaultCMPerSecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := ranger.Measure(ctx)
	require.ErrorIs(t, err, errEchoStart)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestButton_Debounce(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		line := new(fakeLine)
		button := NewButton(line, 150*time.Millisecond, 10*time.Millisecond)
		require.True(t, line.pullUp)

		ctx, cancel := context.WithCancel(t.Context())
		presses := button.Presses(ctx)

		count := 0
		drain := func() {
			for {
				select {
				case <-presses:
					count++
				default:
					return
				}
			}
		}

		// A clean press.
		line.set(rpio.Low)
		time.Sleep(25 * time.Millisecond)
		drain()
		require.Equal(t, 1, count)

		// Contact bounce inside the debounce window.
		line.set(rpio.High)
		time.Sleep(25 * time.Millisecond)
		line.set(rpio.Low)
		time.Sleep(25 * time.Millisecond)
		drain()
		require.Equal(t, 1, count)

		// A second press well after the first.
		line.set(rpio.High)
		time.Sleep(200 * time.Millisecond)
		line.set(rpio.Low)
		time.Sleep(25 * time.Millisecond)
		drain()
		require.Equal(t, 2, count)

		cancel()

		_, open := <-presses
		require.False(t, open)
	})
}
