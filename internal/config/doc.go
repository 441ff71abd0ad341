// Package config loads, normalizes, and validates the TOML configuration for
// the hashreview CLI and daemon. Path fields are expanded to absolute paths on
// load, value sets (categories, algorithms, confidence levels) are lowercased
// and de-duplicated, and a sample config is embedded for `config init`.
package config
