// Package services defines shared utilities consumed by the compile and
// playback pipelines.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, stage names, and archive paths
//     for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     (configuration, corrupt archive, damaged frame, missing tool) so the CLI
//     can report them and pick an exit status.
//
// Use these helpers when wiring new pipeline code so error handling and
// observability stay uniform.
package services
