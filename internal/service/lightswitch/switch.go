package lightswitch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oshokin/homee/internal/domain/home"
	"github.com/oshokin/homee/internal/logger"
	"github.com/oshokin/homee/internal/repository/events"
)

// Source tags the events emitted by the switch.
const Source = "light-switch"

// Origins of a change, carried in event payloads.
const (
	OriginButton = "button"
	OriginAPI    = "api"
)

// Command is a requested change of the light system.
type Command int

// Commands.
const (
	CommandToggle Command = iota
	CommandOn
	CommandOff
)

// String implements fmt.Stringer.
func (c Command) String() string {
	switch c {
	case CommandOn:
		return "on"
	case CommandOff:
		return "off"
	default:
		return "toggle"
	}
}

// ParseCommand parses "on", "off" or "toggle".
func ParseCommand(s string) (Command, error) {
	switch s {
	case "on":
		return CommandOn, nil
	case "off":
		return CommandOff, nil
	case "toggle":
		return CommandToggle, nil
	default:
		return 0, fmt.Errorf("%w: %q", errUnknownCommand, s)
	}
}

var (
	// ErrStopped is returned by Request once Run has returned.
	ErrStopped = errors.New("light switch stopped")

	errUnknownCommand = errors.New("unknown light command")
)

// Target is the holder of the flag.
type Target interface {
	SetLightEnabled(ctx context.Context, enabled bool)
	LightEnabled() bool
}

// StateUpdater persists the flag.
type StateUpdater interface {
	Update(ctx context.Context, fn func(*home.ControlState)) error
}

type request struct {
	cmd    Command
	origin string
	reply  chan bool
}

// Switch serialises every change of the light-system flag.
type Switch struct {
	target   Target
	sink     events.Sink
	state    StateUpdater
	requests chan request
	stopped  chan struct{}
}

// New creates a switch for target. sink and state may be nil.
func New(target Target, sink events.Sink, state StateUpdater) *Switch {
	return &Switch{
		target:   target,
		sink:     sink,
		state:    state,
		requests: make(chan request),
		stopped:  make(chan struct{}),
	}
}

// Run applies button presses and requests until ctx is done. presses may be nil.
func (s *Switch) Run(ctx context.Context, presses <-chan struct{}) error {
	defer close(s.stopped)

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-presses:
			if !ok {
				presses = nil

				continue
			}

			s.apply(ctx, CommandToggle, OriginButton)
		case req := <-s.requests:
			req.reply <- s.apply(ctx, req.cmd, req.origin)
		}
	}
}

// Request asks the owner goroutine to apply cmd and returns the resulting flag.
func (s *Switch) Request(ctx context.Context, cmd Command) (bool, error) {
	req := request{
		cmd:    cmd,
		origin: OriginAPI,
		reply:  make(chan bool, 1),
	}

	select {
	case s.requests <- req:
	case <-s.stopped:
		return false, ErrStopped
	case <-ctx.Done():
		return false, ctx.Err()
	}

	select {
	case enabled := <-req.reply:
		return enabled, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (s *Switch) apply(ctx context.Context, cmd Command, origin string) bool {
	current := s.target.LightEnabled()

	next := !current
	switch cmd {
	case CommandOn:
		next = true
	case CommandOff:
		next = false
	case CommandToggle:
	}

	if next == current {
		return current
	}

	s.target.SetLightEnabled(ctx, next)

	logger.InfoKV(ctx, "Light system switched", "enabled", next, "origin", origin)

	if s.sink != nil {
		s.sink.Emit(home.NewEvent(home.EventLightSystemToggled, Source, time.Now(), map[string]string{
			"enabled": strconv.FormatBool(next),
			"origin":  origin,
		}))
	}

	if s.state != nil {
		_ = s.state.Update(ctx, func(st *home.ControlState) { st.LightEnabled = next })
	}

	return next
}
