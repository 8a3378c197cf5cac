// Package events implements the append-only event sink.
//
// Loops hand events to a Dispatcher, which queues them and fans each one out
// exactly once to every configured Writer: the CSV activity log, the in-memory
// History behind the dashboard and, optionally, an MQTT broker.
package events
