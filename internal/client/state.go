package client

// State is the connection lifecycle state of a service client.
//
// Valid transitions: Uninitialized → Initializing → Initialized → Destroyed.
// A failed Init returns the client to Uninitialized; a Destroyed client is
// terminal.
type State int

// Lifecycle states.
const (
	StateUninitialized State = iota
	StateInitializing
	StateInitialized
	StateDestroyed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Kind identifies the protocol a service client speaks.
type Kind string

// Known client kinds.
const (
	KindLogBroker   Kind = "log-broker"
	KindPubSub      Kind = "pubsub"
	KindObjectStore Kind = "object-store"
	KindLogStore    Kind = "log-store"
)
