// Package intruder implements the close-range intruder alarm. It owns its own
// ranger, has no baseline and fires whenever something sits inside the
// configured distance band.
package intruder
