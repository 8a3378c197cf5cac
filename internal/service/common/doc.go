// Package common holds helpers shared by several services.
//
// It provides a lightweight gRPC client for the monitor control API with
// timeouts, and detects the current system actor (user@host) that is sent
// along with every call for the audit log.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
