// Package metrics exposes Prometheus instruments for the sensing loops, the
// actuator arbiter and the event pipeline. A nil *Manager is valid and records
// nothing, so components can take metrics as an optional dependency.
package metrics
