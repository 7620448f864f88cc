package instance

import (
	"context"

	"wamux/internal/store"
)

// credentialView scopes the shared credential store to one session for the
// engine. The engine sees flat category+id keys; the store namespaces them
// under the session key.
type credentialView struct {
	creds   *store.Credentials
	session string
}

func (v *credentialView) Get(ctx context.Context, key string) ([]byte, error) {
	return v.creds.Get(ctx, v.session, key)
}

func (v *credentialView) Set(ctx context.Context, key string, value []byte) error {
	return v.creds.Set(ctx, v.session, key, value)
}

func (v *credentialView) Delete(ctx context.Context, key string) error {
	return v.creds.Delete(ctx, v.session, key)
}

// archiveView satisfies the engine's history lookups from the message
// archive.
type archiveView struct {
	archive *store.Messages
}

func (v *archiveView) Resolve(ctx context.Context, messageID string) ([]byte, error) {
	return v.archive.Get(ctx, messageID)
}
