// Package state persists the control state (light-system flag and last badge)
// across restarts.
//
// The FileRepository stores the state as protobuf JSON on disk. Store keeps the
// current value in memory and serialises updates from the loops that own its
// fields.
package state
