package sim

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

// ErrNoEcho is returned by a scripted ranger for a missing reading.
var ErrNoEcho = errors.New("no echo")

// Visit makes a NoisyRanger report Distance during the last For of every Every,
// so a fresh ranger starts with an empty scene.
type Visit struct {
	Every    time.Duration
	For      time.Duration
	Distance float64
}

// NoisyRanger reports Base plus uniform jitter, with optional periodic visits.
type NoisyRanger struct {
	Base   float64
	Jitter float64
	Visit  Visit

	mu    sync.Mutex
	rng   *rand.Rand
	start time.Time
}

// NewNoisyRanger creates a ranger seeded for reproducible runs.
func NewNoisyRanger(base, jitter float64, visit Visit, seed uint64) *NoisyRanger {
	return &NoisyRanger{
		Base:   base,
		Jitter: jitter,
		Visit:  visit,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), //nolint:gosec // Not security sensitive.
		start:  time.Now(),
	}
}

// Measure implements the ranger contract.
func (r *NoisyRanger) Measure(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	distance := r.Base
	if r.Visit.Every > 0 && time.Since(r.start)%r.Visit.Every >= r.Visit.Every-r.Visit.For {
		distance = r.Visit.Distance
	}

	return distance + (r.rng.Float64()*2-1)*r.Jitter, nil
}

// ScriptedRanger replays fixed readings, repeating the last one forever.
// A negative reading stands for a failed measurement.
type ScriptedRanger struct {
	mu       sync.Mutex
	readings []float64
	next     int
}

// NewScriptedRanger creates a ranger over readings.
func NewScriptedRanger(readings ...float64) *ScriptedRanger {
	return &ScriptedRanger{readings: readings}
}

// Measure implements the ranger contract.
func (r *ScriptedRanger) Measure(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.readings) == 0 {
		return 0, ErrNoEcho
	}

	reading := r.readings[min(r.next, len(r.readings)-1)]
	r.next++

	if reading < 0 {
		return 0, ErrNoEcho
	}

	return reading, nil
}

// Set replaces the script and restarts it.
func (r *ScriptedRanger) Set(readings ...float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.readings = readings
	r.next = 0
}
