package intruder

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/oshokin/homee/internal/actuator"
	"github.com/oshokin/homee/internal/domain/home"
	"github.com/oshokin/homee/internal/filter"
	"github.com/oshokin/homee/internal/logger"
	"github.com/oshokin/homee/internal/metrics"
	"github.com/oshokin/homee/internal/repository/events"
)

// Source tags the events emitted by the loop.
const Source = "intruder"

// Message is shown on the display while the alarm is active.
const Message = "Intruder Detected!"

// Defaults.
const (
	DefaultBandMin       = 2.0
	DefaultBandMax       = 10.0
	DefaultFlashDuration = 5 * time.Second
	DefaultFlashInterval = 200 * time.Millisecond
	DefaultInterval      = time.Second
)

// Options configures a Loop.
type Options struct {
	// BandMin and BandMax bound the trigger band in centimetres, both exclusive.
	BandMin float64
	BandMax float64
	// FlashDuration is how long the alert LED flashes after a trigger.
	FlashDuration time.Duration
	// FlashInterval is the on time and the off time of one flash.
	FlashInterval time.Duration
	// Interval is the pause between two samples.
	Interval time.Duration
}

func (o *Options) setDefaults() {
	if o.BandMin <= 0 && o.BandMax <= 0 {
		o.BandMin, o.BandMax = DefaultBandMin, DefaultBandMax
	}

	if o.FlashDuration <= 0 {
		o.FlashDuration = DefaultFlashDuration
	}

	if o.FlashInterval <= 0 {
		o.FlashInterval = DefaultFlashInterval
	}

	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
}

// Loop is the intruder alarm loop.
type Loop struct {
	src     filter.SampleSource
	arbiter *actuator.Arbiter
	sink    events.Sink
	metrics *metrics.Manager
	opts    Options

	mu     sync.Mutex
	status home.AlarmStatus
}

// NewLoop creates a loop reading src. sink and m may be nil.
func NewLoop(src filter.SampleSource, arbiter *actuator.Arbiter, sink events.Sink, m *metrics.Manager, opts Options) *Loop {
	opts.setDefaults()

	return &Loop{
		src:     src,
		arbiter: arbiter,
		sink:    sink,
		metrics: m,
		opts:    opts,
	}
}

// Run samples until ctx is done. An alert in progress always runs to its
// deadline; cancellation is observed between iterations.
func (l *Loop) Run(ctx context.Context) error {
	logger.InfoKV(ctx, "Intruder alarm armed",
		"band_min_cm", l.opts.BandMin, "band_max_cm", l.opts.BandMax)

	for {
		sample := l.src.Sample(ctx)
		if sample.Valid && l.InBand(sample.Distance) {
			l.alert(ctx, sample.Distance)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.opts.Interval):
		}
	}
}

// InBand reports whether distance lies strictly inside the trigger band.
func (l *Loop) InBand(distance float64) bool {
	return distance > l.opts.BandMin && distance < l.opts.BandMax
}

// Status returns the alarm state.
func (l *Loop) Status() home.AlarmStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.status
}

func (l *Loop) setStatus(status home.AlarmStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.status = status
}

func (l *Loop) alert(ctx context.Context, distance float64) {
	now := time.Now()
	deadline := now.Add(l.opts.FlashDuration)

	logger.WarnKV(ctx, "Intruder detected", "distance_cm", distance)

	if l.sink != nil {
		l.sink.Emit(home.NewEvent(home.EventIntruderDetected, Source, now, map[string]string{
			"distance_cm": strconv.FormatFloat(distance, 'f', 1, 64),
		}))
	}

	l.metrics.RecordIntruderAlert()
	l.setStatus(home.AlarmStatus{Deadline: deadline})

	_ = l.arbiter.WithExclusiveAccess(ctx, actuator.GroupDisplay, func(d *actuator.Devices) error {
		d.Clear(actuator.Display)
		d.Set(actuator.Display, Message)

		return nil
	})

	_ = l.arbiter.WithExclusiveAccess(ctx, actuator.GroupAlertLEDs, func(d *actuator.Devices) error {
		for time.Now().Before(deadline) {
			d.On(actuator.AlertLED)
			time.Sleep(min(l.opts.FlashInterval, time.Until(deadline)))
			d.Off(actuator.AlertLED)
			time.Sleep(min(l.opts.FlashInterval, time.Until(deadline)))
		}

		return nil
	})

	_ = l.arbiter.WithExclusiveAccess(ctx, actuator.GroupDisplay, func(d *actuator.Devices) error {
		d.Clear(actuator.Display)

		return nil
	})

	l.setStatus(home.AlarmStatus{})

	logger.InfoKV(ctx, "Intruder alert finished")
}
