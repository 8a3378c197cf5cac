// Package lightswitch owns the light-system flag. Button presses and API
// commands are funnelled into one goroutine, which is the only writer of the
// flag held by the motion machine.
package lightswitch
