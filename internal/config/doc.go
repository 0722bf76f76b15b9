// Package config loads, normalizes, and validates bisub configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a sibling .env file, and honours
// environment fallbacks such as BISUB_TRANSLATION_APP_ID. Synchronizer
// thresholds, translation client policy, and orchestrator timing all live here
// so they stay tunable without code changes.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log levels, and clear validation errors.
package config
