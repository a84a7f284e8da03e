// Package config loads, normalizes, and validates copyengine configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the environment variables the
// service has always accepted (VOLCENGINE_*, RESOLVER_*, ASR_*, PORT, ...).
// Environment values only fill settings the file leaves empty. LoadDotEnv
// reads .env.local and .env.example without overriding the real environment.
//
// Always obtain settings through this package so downstream code receives
// sanitized endpoints, positive timeouts, and clear validation errors.
package config
