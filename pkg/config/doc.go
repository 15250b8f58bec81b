// Package config handles configuration management for archsetup.
// It supports loading configuration from multiple sources including
// the embedded defaults, TOML files and environment variables.
package config
