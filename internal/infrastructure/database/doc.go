// Package database provides the SQLite-backed store of per-client
// configuration overrides.
//
// The registry consults the store (when enabled) for settings that override
// the YAML file, letting a smoke-test deployment repoint clients without
// editing config under version control.
package database
