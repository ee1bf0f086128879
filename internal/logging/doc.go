// Package logging provides a simple leveled logging interface for
// source-seeker.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information, including per-file skip reasons during scans
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//
// The log level is configured via the LOG_LEVEL (or DEBUG) environment
// variable and may be overridden by command line flags through [SetLevel].
package logging
