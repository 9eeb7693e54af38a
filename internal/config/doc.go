// Package config loads, normalizes, and validates bapple configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files from --config, ~/.config/bapple/config.toml,
// or ./bapple.toml. Validation errors name the offending field and wrap
// services.ErrConfiguration so the CLI can exit with the configuration status.
//
// Accessors such as FrameOptions and Budget translate the flat TOML settings
// into the typed options the encoder and size controller consume.
package config
