// Package config loads, normalizes, and validates subtoolkit configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts),
// reads TOML files, and honours the OPENAI_API_KEY and ANTHROPIC_API_KEY
// environment fallbacks. Stage planning reads the script locations,
// provider credentials, and per-stage options from the Config type.
package config
