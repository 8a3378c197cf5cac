package gpio

import (
	"context"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

const (
	// DefaultDebounce ignores presses closer together than this.
	DefaultDebounce = 150 * time.Millisecond
	// DefaultPollInterval is how often the button line is sampled.
	DefaultPollInterval = 10 * time.Millisecond
)

// Button is a push button wired to ground with the internal pull-up enabled,
// so a press reads low.
type Button struct {
	line     Line
	debounce time.Duration
	poll     time.Duration
}

// NewButton configures the line as a pulled-up input.
func NewButton(line Line, debounce, poll time.Duration) *Button {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	if poll <= 0 {
		poll = DefaultPollInterval
	}

	line.Input()
	line.PullUp()

	return &Button{
		line:     line,
		debounce: debounce,
		poll:     poll,
	}
}

// Presses polls the line until ctx is done and reports each debounced press.
// The channel is closed when polling stops.
func (b *Button) Presses(ctx context.Context) <-chan struct{} {
	presses := make(chan struct{}, 1)

	go func() {
		defer close(presses)

		var (
			ticker    = time.NewTicker(b.poll)
			wasDown   bool
			lastPress time.Time
		)

		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				down := b.line.Read() == rpio.Low
				if down && !wasDown && (lastPress.IsZero() || now.Sub(lastPress) >= b.debounce) {
					lastPress = now

					select {
					case presses <- struct{}{}:
					default:
					}
				}

				wasDown = down
			}
		}
	}()

	return presses
}
