// Package config builds the runtime of the librarian command from the environment:
// which backend to open, the lending policy, retry tuning and the optional
// OpenTelemetry exporters.
//
// Settings are read from environment variables, optionally seeded from a .env file.
// Unset variables fall back to a local SQLite database without telemetry.
package config
