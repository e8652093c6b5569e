// Package config loads and validates smokecore configuration.
//
// Configuration is read from a YAML file, merged over hardcoded defaults, and
// finally overridden by SMOKE_* environment variables. Secrets (broker
// credentials, storage keys, tokens) should be supplied via the environment
// rather than committed to the file.
package config
