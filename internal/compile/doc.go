// Package compile turns a video (local file or URL) into a .bapple archive,
// and a still image into a text frame.
//
// A compile run resolves ffmpeg and ffprobe up front, probes the frame rate,
// extracts frames and audio into a private staging directory, encodes frames
// on a worker pool, and appends them in order through a single archive
// writer. Cancellation or failure removes the partial archive and staging
// files.
package compile
