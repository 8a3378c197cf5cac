// Package sim provides stand-in hardware for running the monitor away from the
// Raspberry Pi: log-only actuators, synthetic rangers and a scripted badge reader.
package sim
