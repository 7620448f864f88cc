package instance

import "errors"

// Caller errors returned synchronously by the Manager API. Matched with
// errors.Is at the transport layer; never logged as failures.
var (
	ErrInvalidKey    = errors.New("invalid session key")
	ErrAlreadyExists = errors.New("session already exists")
	ErrNotFound      = errors.New("session not found")
	ErrNotConnected  = errors.New("session not connected")
	ErrNotPairing    = errors.New("session not awaiting pairing")
	ErrInitFailed    = errors.New("session initialization failed")
)
