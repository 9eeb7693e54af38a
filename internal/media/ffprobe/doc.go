// Package ffprobe wraps the ffprobe CLI to expose the stream details the
// compiler needs: frame rate, frame count, and whether an audio track exists.
//
// Inspect runs ffprobe with JSON output and decodes it into Result; helpers
// parse rational rates such as "30000/1001".
package ffprobe
