// Package filter denoises ranging samples with a moving median and derives the
// empty-scene baseline the motion engine compares live readings against.
package filter
