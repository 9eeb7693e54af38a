// Package main hosts the bapple CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration once, applies per-command flag
// overrides on top of it, and hands the result to the internal compile,
// playback, and deps packages. Frames go to stdout; logs go to stderr and the
// JSON log file under paths.log_dir.
package main
