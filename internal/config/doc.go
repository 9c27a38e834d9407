// Package config loads, normalizes, and validates the angler TOML
// configuration. The file is looked up at ~/.config/angler/config.toml and
// then ./angler.toml; a handful of ANGLER_* environment variables override it.
package config
