// Package client implements homee-ctl, the command-line client of the monitor's
// control API.
//
// It reads the monitor status, switches the light system on or off, and can
// poll the status at a fixed interval. Responses are printed as JSON.
package client
