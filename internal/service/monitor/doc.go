// Package monitor runs the homee daemon.
//
// It loads the configuration, opens the hardware (GPIO and serial devices on
// the Raspberry Pi, or the simulator elsewhere), calibrates the motion sensor
// and supervises every loop under one errgroup: motion sensing and its light
// watcher, the intruder alarm, badge presence, the light switch and the
// dashboard and control API servers. Cancelling the context stops the loops,
// switches every output off and flushes the event log.
package monitor
