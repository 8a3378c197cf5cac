// Package dashboard serves the web dashboard: a small status page, a JSON API
// over the monitor state and the event log, Prometheus metrics and a health check.
package dashboard
