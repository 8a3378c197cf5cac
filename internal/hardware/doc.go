// Package hardware holds host-level checks shared by the concrete drivers.
// The drivers themselves live in the gpio, serialdev and sim subpackages.
package hardware
