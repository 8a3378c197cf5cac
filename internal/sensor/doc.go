// Package sensor turns a ranging device into a stream of RawSamples.
//
// The Sampler bounds each read with a timeout, treats failures and absurd
// values as missing readings and reports a degraded sensor once per streak of
// consecutive failures. Nothing here ever stops the calling loop.
package sensor
