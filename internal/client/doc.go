// Package client defines the uniform service-client lifecycle contract shared
// by every infrastructure client in smokecore.
//
// A client embeds Base to get the init/destroy state machine, typed settings
// access, and the initialization guard called at the top of every public
// operation. The registry package builds clients from configuration and drives
// Init and Destroy; clients own their connection handles exclusively and touch
// no process-wide state.
//
// The package also provides Bounded and BoundedValue, the single timeout-race
// combinator used by all bounded protocol operations.
package client
