// Package motion implements the motion state machine: it compares filtered
// distances against the calibrated baseline, drives the status indicators and
// keeps the room light on for a grace period after motion stops.
//
// Observations come from the sampling loop (Run), grace expiry is checked by an
// independently clocked watcher (Watch) and the light-system flag is written
// by a single owner through SetLightEnabled.
package motion
