package actuator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/oshokin/homee/internal/logger"
	"github.com/oshokin/homee/internal/metrics"
)

// Op is an arbiter operation reported to observers.
type Op string

// Observed operations.
const (
	OpAcquire Op = "acquire"
	OpRelease Op = "release"
	OpSet     Op = "set"
	OpClear   Op = "clear"
)

// Observer is notified of every acquire, write and release. It runs while the
// group is held, so calls for one group are totally ordered.
type Observer func(group Group, op Op, id DeviceID, value string)

var (
	// errUnknownGroup is returned when a scope is requested for a group with no devices.
	errUnknownGroup = errors.New("unknown device group")
	// errForeignDevice is logged when a closure writes outside its group.
	errForeignDevice = errors.New("device does not belong to the held group")
)

// Arbiter owns the device driver and one lock per device group.
type Arbiter struct {
	driver   Driver
	layout   Layout
	locks    map[Group]chan struct{}
	observer Observer
	metrics  *metrics.Manager
}

// Option configures the arbiter.
type Option func(*Arbiter)

// WithLayout overrides the device-to-group assignment.
func WithLayout(layout Layout) Option {
	return func(a *Arbiter) {
		if len(layout) > 0 {
			a.layout = layout
		}
	}
}

// WithObserver installs an operation observer.
func WithObserver(observer Observer) Option {
	return func(a *Arbiter) {
		a.observer = observer
	}
}

// WithMetrics records lock wait times.
func WithMetrics(m *metrics.Manager) Option {
	return func(a *Arbiter) {
		a.metrics = m
	}
}

// NewArbiter creates an arbiter over driver.
func NewArbiter(driver Driver, opts ...Option) *Arbiter {
	a := &Arbiter{
		driver: driver,
		layout: DefaultLayout(),
	}

	for _, opt := range opts {
		opt(a)
	}

	groups := a.layout.Groups()
	a.locks = make(map[Group]chan struct{}, len(groups))

	for _, g := range groups {
		a.locks[g] = make(chan struct{}, 1)
	}

	return a
}

// WithExclusiveAccess blocks until group is free, runs fn with a handle scoped to
// the group and releases the group on every exit path, including panics.
// The returned error is fn's.
func (a *Arbiter) WithExclusiveAccess(ctx context.Context, group Group, fn func(*Devices) error) error {
	lock, ok := a.locks[group]
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownGroup, group)
	}

	start := time.Now()
	lock <- struct{}{}
	a.metrics.ObserveArbiterWait(string(group), time.Since(start))
	a.notify(group, OpAcquire, "", "")

	defer func() {
		a.notify(group, OpRelease, "", "")
		<-lock
	}()

	return fn(&Devices{
		ctx:     ctx,
		arbiter: a,
		group:   group,
	})
}

// AllOff clears every device, one group at a time in a fixed order.
func (a *Arbiter) AllOff(ctx context.Context) {
	for _, g := range a.layout.Groups() {
		_ = a.WithExclusiveAccess(ctx, g, func(d *Devices) error {
			for _, id := range a.devicesOf(g) {
				d.Clear(id)
			}

			return nil
		})
	}
}

func (a *Arbiter) devicesOf(group Group) []DeviceID {
	var ids []DeviceID

	for id, g := range a.layout {
		if g == group {
			ids = append(ids, id)
		}
	}

	slices.Sort(ids)

	return ids
}

func (a *Arbiter) notify(group Group, op Op, id DeviceID, value string) {
	if a.observer != nil {
		a.observer(group, op, id, value)
	}
}

// Devices is the write handle valid only inside WithExclusiveAccess.
type Devices struct {
	ctx     context.Context
	arbiter *Arbiter
	group   Group
}

// Set writes value to id. Failures are logged.
func (d *Devices) Set(id DeviceID, value string) {
	if !d.owns(id) {
		return
	}

	d.arbiter.notify(d.group, OpSet, id, value)

	if err := d.arbiter.driver.Set(id, value); err != nil {
		logger.ErrorKV(d.ctx, "Device write failed", "device", id, "value", value, "error", err)
	}
}

// Clear switches id off or blanks it. Failures are logged.
func (d *Devices) Clear(id DeviceID) {
	if !d.owns(id) {
		return
	}

	d.arbiter.notify(d.group, OpClear, id, "")

	if err := d.arbiter.driver.Clear(id); err != nil {
		logger.ErrorKV(d.ctx, "Device clear failed", "device", id, "error", err)
	}
}

// On switches a binary output on.
func (d *Devices) On(id DeviceID) {
	d.Set(id, ValueOn)
}

// Off switches a binary output off.
func (d *Devices) Off(id DeviceID) {
	d.Clear(id)
}

func (d *Devices) owns(id DeviceID) bool {
	if d.arbiter.layout[id] == d.group {
		return true
	}

	logger.ErrorKV(d.ctx, "Device write rejected", "device", id, "group", d.group, "error", errForeignDevice)

	return false
}
