// Package actuator arbitrates access to the shared output devices.
//
// Outputs are split into coarse device groups (one per LCD, one per LED bank,
// one for the room light). A loop requests a group, performs a sequence of
// writes and releases it; no other loop can touch the same group in between,
// so "clear, then write" is seen as one step. Device write failures are logged
// and swallowed: state machines never depend on actuator success.
package actuator
