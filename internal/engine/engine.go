// Package engine declares the contract between the gateway and the external
// protocol engine. The engine owns the wire protocol, pairing and encryption;
// the gateway owns everything around it. A concrete engine links itself in by
// calling Register from an init function, the same way database/sql drivers
// register themselves.
package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"wamux/internal/model"
)

// Engine is one live protocol connection for a single session.
//
// Implementations must:
//   - emit events on Events in the order they occur, and close the channel
//     when the connection is finished (after a PhaseClosed event or Close)
//   - persist and read credentials only through the configured Credentials
//   - resolve archived history only through the configured Resolver
type Engine interface {
	// Connect establishes the connection. Lifecycle progress (pairing
	// challenge, handshake success, closure) arrives on Events, not as the
	// return value; Connect fails only when a connection attempt cannot be
	// started at all.
	Connect(ctx context.Context) error

	// Events streams lifecycle, message and group events for this connection.
	Events() <-chan model.Event

	SendText(ctx context.Context, recipient, text string) (model.SendResult, error)
	SendMedia(ctx context.Context, recipient string, media model.Media) (model.SendResult, error)

	// Logout invalidates the account's link to this session on the server
	// side. Best effort; the gateway tears the session down regardless.
	Logout(ctx context.Context) error

	// Close releases the connection without logging out.
	Close() error
}

// Credentials is the per-session credential store the gateway hands to the
// engine. Keys are namespaced by category and id (e.g. "creds",
// "pre-key-17", "app-state-sync-key-AAAA"). Get returns nil with no error
// when the key is absent; the engine must treat a non-nil error as fatal
// rather than proceeding with empty credentials. Set with an empty value is
// a delete, which is how the engine signals key revocation.
type Credentials interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// MessageResolver returns a previously archived message payload, or nil when
// the id is unknown. The engine calls this to satisfy retransmission and
// decryption requests for messages it no longer holds in memory.
type MessageResolver interface {
	Resolve(ctx context.Context, messageID string) ([]byte, error)
}

// Config is everything a factory needs to build an engine for one session.
type Config struct {
	SessionKey  string
	Credentials Credentials
	Resolver    MessageResolver
	Logger      zerolog.Logger
}

// Factory builds a fresh Engine per connection attempt. Reconnection is an
// explicit loop in the session state machine: close the old engine, build a
// new one.
type Factory interface {
	New(cfg Config) (Engine, error)
}

var (
	registerMu sync.Mutex
	registered Factory
)

// ErrNoEngine is returned by Default when no protocol engine has been linked
// into the binary.
var ErrNoEngine = errors.New("engine: no protocol engine registered")

// Register installs the process-wide engine factory. It is intended to be
// called from an init function of the engine implementation package and
// panics on a second call.
func Register(f Factory) {
	registerMu.Lock()
	defer registerMu.Unlock()
	if f == nil {
		panic("engine: Register called with nil factory")
	}
	if registered != nil {
		panic("engine: Register called twice")
	}
	registered = f
}

// Default returns the registered factory.
func Default() (Factory, error) {
	registerMu.Lock()
	defer registerMu.Unlock()
	if registered == nil {
		return nil, ErrNoEngine
	}
	return registered, nil
}
