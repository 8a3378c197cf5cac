package sensor

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/oshokin/homee/internal/domain/home"
	"github.com/oshokin/homee/internal/logger"
	"github.com/oshokin/homee/internal/metrics"
	"github.com/oshokin/homee/internal/repository/events"
)

// Ranger measures one distance in centimetres. Implementations must return
// within a bounded time or honour ctx's deadline.
type Ranger interface {
	Measure(ctx context.Context) (float64, error)
}

const (
	// DefaultTimeout bounds a single measurement.
	DefaultTimeout = 100 * time.Millisecond
	// DefaultMaxRange is the largest distance accepted as valid, in centimetres.
	DefaultMaxRange = 400.0
	// DefaultDegradedAfter is the failure streak that triggers a degraded-sensor event.
	DefaultDegradedAfter = 3
)

// Options configures a Sampler.
type Options struct {
	// Name identifies the sensor in logs, metrics and events.
	Name string
	// Timeout bounds each measurement.
	Timeout time.Duration
	// MaxRange is the largest valid distance in centimetres.
	MaxRange float64
	// DegradedAfter is the number of consecutive failures reported as degraded.
	DegradedAfter int
}

// Sampler reads a Ranger and validates the results. Not safe for concurrent use:
// each loop owns its sampler.
type Sampler struct {
	ranger  Ranger
	opts    Options
	sink    events.Sink
	metrics *metrics.Manager

	failures int
	degraded bool
}

// NewSampler creates a sampler. sink and m may be nil.
func NewSampler(ranger Ranger, opts Options, sink events.Sink, m *metrics.Manager) *Sampler {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	if opts.MaxRange <= 0 {
		opts.MaxRange = DefaultMaxRange
	}

	if opts.DegradedAfter <= 0 {
		opts.DegradedAfter = DefaultDegradedAfter
	}

	return &Sampler{
		ranger:  ranger,
		opts:    opts,
		sink:    sink,
		metrics: m,
	}
}

// Sample takes one reading. Timeouts, errors and out-of-range values yield a
// missing sample.
func (s *Sampler) Sample(ctx context.Context) home.RawSample {
	readCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	distance, err := s.ranger.Measure(readCtx)
	now := time.Now()

	if err != nil {
		s.fail(ctx, now, "error", err.Error())
		return home.Missing(now)
	}

	if !s.valid(distance) {
		s.fail(ctx, now, "out_of_range", strconv.FormatFloat(distance, 'f', 1, 64))
		return home.Missing(now)
	}

	if s.degraded {
		logger.InfoKV(ctx, "Sensor recovered", "sensor", s.opts.Name, "failures", s.failures)
	}

	s.failures = 0
	s.degraded = false
	s.metrics.RecordDistance(s.opts.Name, distance)

	return home.Sample(distance, now)
}

// ConsecutiveFailures returns the current failure streak.
func (s *Sampler) ConsecutiveFailures() int {
	return s.failures
}

func (s *Sampler) valid(distance float64) bool {
	return !math.IsNaN(distance) && distance > 0 && distance <= s.opts.MaxRange
}

func (s *Sampler) fail(ctx context.Context, now time.Time, reason, detail string) {
	s.failures++
	s.metrics.RecordSensorFailure(s.opts.Name)

	logger.DebugKV(ctx, "Sensor reading missing", "sensor", s.opts.Name, "reason", reason, "detail", detail)

	if s.degraded || s.failures < s.opts.DegradedAfter {
		return
	}

	s.degraded = true

	logger.WarnKV(ctx, "Sensor degraded", "sensor", s.opts.Name, "failures", s.failures, "reason", reason)

	if s.sink != nil {
		s.sink.Emit(home.NewEvent(home.EventSensorDegraded, s.opts.Name, now, map[string]string{
			"failures": strconv.Itoa(s.failures),
			"reason":   reason,
		}))
	}
}
