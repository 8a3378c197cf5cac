// Package config defines the settings shared by the homee binaries and
// provides helpers to load, validate and save them.
//
// Settings are layered: built-in defaults, then an optional YAML file, then
// HOMEE_ environment variables where a double underscore separates sections
// (HOMEE_MOTION__THRESHOLD_CM=20).
package config
