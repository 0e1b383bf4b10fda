// Package config loads, normalizes, and validates audiopipe configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours AUDIOPIPE_* environment overrides
// for the settings operators most often change per host (device, model,
// loudness target, size limit, log level, retention).
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical stage names, and clear validation errors.
package config
