package badge

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oshokin/homee/internal/actuator"
	"github.com/oshokin/homee/internal/domain/home"
	"github.com/oshokin/homee/internal/logger"
	"github.com/oshokin/homee/internal/metrics"
	"github.com/oshokin/homee/internal/repository/events"
)

// Source tags the events emitted by the loop.
const Source = "badge"

// Display messages.
const (
	MessageIn  = "Welcome"
	MessageOut = "Goodbye"
)

const (
	// DefaultPulse is how long the badge LED stays on after a scan.
	DefaultPulse = 2 * time.Second
	// DefaultRepeatWindow merges repeated frames of one tag into a single scan.
	DefaultRepeatWindow = 2 * time.Second

	readRetryDelay = time.Second
	frameBuffer    = 16
)

// Reader blocks until a tag is presented and returns its UID.
type Reader interface {
	Read(ctx context.Context) (string, error)
}

// StateUpdater persists the last badge UID.
type StateUpdater interface {
	Update(ctx context.Context, fn func(*home.ControlState)) error
}

// Options configures a Loop.
type Options struct {
	// Pulse is how long the badge LED stays on.
	Pulse time.Duration
	// RepeatWindow merges frames of one tag that arrive while its pulse runs.
	RepeatWindow time.Duration
	// LastUID is the restored last badge UID.
	LastUID string
}

// Loop is the badge presence loop. Only Run and Scan mutate it; LastUID may be
// read from any goroutine.
type Loop struct {
	reader  Reader
	arbiter *actuator.Arbiter
	sink    events.Sink
	state   StateUpdater
	metrics *metrics.Manager
	pulse   time.Duration
	repeat  time.Duration

	lastUID    atomic.Value
	lastSeen   string
	lastSeenAt time.Time
	busyUntil  time.Time
}

// frame is one tag read stamped with its arrival time.
type frame struct {
	uid string
	at  time.Time
}

// NewLoop creates a badge loop. sink, state and m may be nil.
func NewLoop(
	reader Reader,
	arbiter *actuator.Arbiter,
	sink events.Sink,
	state StateUpdater,
	m *metrics.Manager,
	opts Options,
) *Loop {
	if opts.Pulse <= 0 {
		opts.Pulse = DefaultPulse
	}

	if opts.RepeatWindow <= 0 {
		opts.RepeatWindow = DefaultRepeatWindow
	}

	l := &Loop{
		reader:  reader,
		arbiter: arbiter,
		sink:    sink,
		state:   state,
		metrics: m,
		pulse:   opts.Pulse,
		repeat:  opts.RepeatWindow,
	}

	l.lastUID.Store(normalize(opts.LastUID))
	m.SetBadgePresent(l.LastUID() != "")

	return l
}

// LastUID returns the UID of the badge currently checked in, or "".
func (l *Loop) LastUID() string {
	uid, _ := l.lastUID.Load().(string)

	return uid
}

// Run reads badges until ctx is done. Reader failures are logged and retried.
func (l *Loop) Run(ctx context.Context) error {
	frames := make(chan frame, frameBuffer)
	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)

		l.read(ctx, frames)
	}()

	defer func() { <-readerDone }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-frames:
			l.scan(ctx, f.uid, f.at)
		}
	}
}

// read keeps the reader drained while a scan is shown, so frames carry the
// time they arrived rather than the time they were handled.
func (l *Loop) read(ctx context.Context, frames chan<- frame) {
	for {
		uid, err := l.reader.Read(ctx)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			logger.WarnKV(ctx, "Badge read failed", "error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}

			continue
		}

		select {
		case <-ctx.Done():
			return
		case frames <- frame{uid: uid, at: time.Now()}:
		}
	}
}

// Scan handles one tag read now and reports whether it counted as a scan.
func (l *Loop) Scan(ctx context.Context, uid string) bool {
	return l.scan(ctx, uid, time.Now())
}

// scan handles a tag read that arrived at at. A frame of the last tag that
// arrived while its pulse was running, within the repeat window of the
// previous frame, is a repeat.
func (l *Loop) scan(ctx context.Context, uid string, at time.Time) bool {
	uid = normalize(uid)
	if uid == "" {
		return false
	}

	if uid == l.lastSeen && at.Before(l.busyUntil) && at.Sub(l.lastSeenAt) < l.repeat {
		l.lastSeenAt = at
		logger.DebugKV(ctx, "Repeated badge frame ignored", "uid", uid)

		return false
	}

	kind, message, next := home.EventBadgeIn, MessageIn, uid
	if uid == l.LastUID() {
		kind, message, next = home.EventBadgeOut, MessageOut, ""
	}

	l.lastUID.Store(next)
	l.metrics.SetBadgePresent(next != "")
	l.lastSeen = uid
	l.lastSeenAt = at

	logger.InfoKV(ctx, "Badge scanned", "uid", uid, "kind", kind)

	if l.sink != nil {
		l.sink.Emit(home.NewEvent(kind, Source, at, map[string]string{"uid": uid}))
	}

	if l.state != nil {
		_ = l.state.Update(ctx, func(s *home.ControlState) { s.LastBadgeUID = next })
	}

	l.show(ctx, message)

	l.busyUntil = time.Now()

	return true
}

// show writes the message and pulses the badge LED. The status group is not
// held across the pulse.
func (l *Loop) show(ctx context.Context, message string) {
	_ = l.arbiter.WithExclusiveAccess(ctx, actuator.GroupDisplay, func(d *actuator.Devices) error {
		d.Clear(actuator.Display)
		d.Set(actuator.Display, message)

		return nil
	})

	_ = l.arbiter.WithExclusiveAccess(ctx, actuator.GroupStatusLEDs, func(d *actuator.Devices) error {
		d.On(actuator.BadgeLED)

		return nil
	})

	time.Sleep(l.pulse)

	_ = l.arbiter.WithExclusiveAccess(ctx, actuator.GroupStatusLEDs, func(d *actuator.Devices) error {
		d.Off(actuator.BadgeLED)

		return nil
	})
}

func normalize(uid string) string {
	return strings.ToUpper(strings.TrimSpace(uid))
}
