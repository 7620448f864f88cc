package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMessages_UpsertAndGet(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	msgs := NewMessages(db, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, msgs.Upsert(ctx, "ABC123", []byte(`{"key":{"id":"ABC123"}}`)))

	got, err := msgs.Get(ctx, "ABC123")
	require.NoError(t, err)
	require.JSONEq(t, `{"key":{"id":"ABC123"}}`, string(got))

	// Later copies of the same message replace the stored payload.
	require.NoError(t, msgs.Upsert(ctx, "ABC123", []byte(`{"key":{"id":"ABC123"},"status":2}`)))

	got, err = msgs.Get(ctx, "ABC123")
	require.NoError(t, err)
	require.JSONEq(t, `{"key":{"id":"ABC123"},"status":2}`, string(got))
}

func TestMessages_GetAbsent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	msgs := NewMessages(db, zerolog.Nop())

	got, err := msgs.Get(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, got)
}
