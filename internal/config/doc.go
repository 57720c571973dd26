// Package config loads, normalizes, and validates the client's TOML
// configuration. Path fields are tilde-expanded and made absolute; zero
// or empty values fall back to repository defaults so a partial config
// file stays usable.
package config
