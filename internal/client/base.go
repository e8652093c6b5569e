package client

import (
	"context"
	"sync"

	"github.com/probeworks/smokecore/internal/serr"
)

// Domain is the structured-error domain for lifecycle violations.
const Domain = "core"

// Structured codes raised by the lifecycle contract.
const (
	CodeNotInitialized = "not_initialized"
	CodeInvalidState   = "invalid_state"
)

// Service is the operation set every smokecore client implements in addition
// to its protocol-specific methods.
type Service interface {
	// Name returns the instance name the client was registered under.
	Name() string

	// Kind returns the protocol kind of the client.
	Kind() Kind

	// State returns the current lifecycle state.
	State() State

	// Init transitions Uninitialized → Initialized, running protocol-specific
	// setup. On error the client is left Uninitialized, never partially
	// initialized.
	Init(ctx context.Context) error

	// Destroy tears the connection down. It is idempotent: calling it on an
	// already-destroyed or never-initialized client returns nil.
	Destroy(ctx context.Context) error
}

// Base implements the lifecycle state machine and settings access shared by
// all clients. Embed it by value and call BeginInit/FinishInit from Init and
// BeginDestroy from Destroy.
//
// Thread Safety: all methods are safe for concurrent use.
type Base struct {
	name     string
	kind     Kind
	settings Settings

	mu    sync.Mutex
	state State
}

// NewBase creates the lifecycle base for a named client.
func NewBase(name string, kind Kind, settings Settings) Base {
	if settings == nil {
		settings = Settings{}
	}
	return Base{name: name, kind: kind, settings: settings}
}

// Name returns the client instance name.
func (b *Base) Name() string { return b.name }

// Kind returns the client kind.
func (b *Base) Kind() Kind { return b.kind }

// Settings returns the client's configuration map.
func (b *Base) Settings() Settings { return b.settings }

// State returns the current lifecycle state.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// BeginInit transitions Uninitialized → Initializing.
//
// It fails with a structured validation error when the client is already
// initializing, initialized, or destroyed.
func (b *Base) BeginInit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateUninitialized {
		return serr.New(Domain, CodeInvalidState).
			WithDetail("client", b.name).
			WithDetail("state", b.state.String())
	}
	b.state = StateInitializing
	return nil
}

// FinishInit completes an Init attempt. A nil err moves the client to
// Initialized; any other value returns it to Uninitialized so a failed Init
// never leaves a partially initialized client behind.
func (b *Base) FinishInit(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.state = StateUninitialized
		return
	}
	b.state = StateInitialized
}

// BeginDestroy marks the client Destroyed and reports whether teardown work
// should run. It returns false when the client was never initialized or is
// already destroyed, making Destroy idempotent.
func (b *Base) BeginDestroy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasInitialized := b.state == StateInitialized
	b.state = StateDestroyed
	return wasInitialized
}

// EnsureInitialized is the guard called at the top of every public protocol
// operation. It fails with a validation error identifying the client when the
// state is not Initialized.
func (b *Base) EnsureInitialized() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateInitialized {
		return serr.New(Domain, CodeNotInitialized).
			WithDetail("client", b.name).
			WithDetail("state", b.state.String())
	}
	return nil
}
