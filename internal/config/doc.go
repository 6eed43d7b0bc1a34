// Package config loads the pipeline configuration: a YAML file layered over
// built-in defaults, then WEEKLY_EVENTS_* environment overrides, optionally
// seeded from a .env file.
package config
