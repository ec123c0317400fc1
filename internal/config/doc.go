// Package config loads, normalizes, and validates sttbatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, merges an optional .env file, and honours
// environment fallbacks such as WATSON_STT_API_KEY. The Config value is built
// once at startup and handed to constructors explicitly; nothing in the
// orchestrator reads the environment on its own.
//
// Every load failure is tagged with services.ErrConfiguration, which the CLI
// treats as fatal before any job is submitted.
package config
