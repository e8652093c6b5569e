// Package registry builds and tracks service clients.
//
// Client kinds register a Builder; the registry constructs an instance from
// settings, drives its Init, and caches it by name so BDD steps can share one
// live client per configured service. FromConfig wires the standard kinds
// from the loaded configuration, merging per-client overrides from the config
// store when one is supplied.
package registry
