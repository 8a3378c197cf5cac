// Package logger wraps zap with a process-wide sugared logger and context helpers.
//
// Every sensing loop receives a named context logger (WithName), so lines from
// the motion, intruder and badge loops can be told apart. Configure switches
// between console and JSON output and sets the level from the settings file.
package logger
