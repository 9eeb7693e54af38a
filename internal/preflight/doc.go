// Package preflight provides readiness checks for the directories, external
// tools, and audio players bapple depends on.
//
// `bapple status` renders every result. The compile command runs the
// directory checks before extracting frames so a read-only staging area
// fails fast instead of after ffmpeg has run.
package preflight
