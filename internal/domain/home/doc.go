// Package home contains the core domain types shared by the sensing loops:
// raw and filtered distance samples, motion and alarm states, control state
// toggles and the immutable Event emitted to sinks.
package home
