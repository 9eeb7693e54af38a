// Package logging assembles structured slog loggers and formatting helpers used
// across bapple commands.
//
// It owns the console and JSON handlers, fans records out to stderr and the
// persistent log file, and exposes context-aware helpers so pipeline code tags
// log lines with the session ID, stage, and archive path. The package also
// provides a no-op logger for tests and library callers that pass nil.
package logging
