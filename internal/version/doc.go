// Package version holds the build metadata of the homee binaries.
//
// Version, Commit and BuildTime are injected with -ldflags -X at build time.
// The helpers render them for the version subcommand, the startup log line
// and the control client's user agent.
package version
