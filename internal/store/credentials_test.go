package store

import (
	"context"
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *Credentials {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCredentials(db, 0, zerolog.Nop())
}

func TestCredentials_RoundTrip(t *testing.T) {
	creds := openTestDB(t)
	ctx := context.Background()

	payload := make([]byte, 512)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	require.NoError(t, creds.Set(ctx, "alpha", "noise-keys", payload))

	got, err := creds.Get(ctx, "alpha", "noise-keys")
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestCredentials_GetAbsent(t *testing.T) {
	creds := openTestDB(t)

	got, err := creds.Get(context.Background(), "alpha", "missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestCredentials_SetOverwrites(t *testing.T) {
	creds := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, creds.Set(ctx, "alpha", "creds", []byte("v1")))
	require.NoError(t, creds.Set(ctx, "alpha", "creds", []byte("v2")))

	got, err := creds.Get(ctx, "alpha", "creds")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got)
}

func TestCredentials_SetEmptyDeletes(t *testing.T) {
	creds := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, creds.Set(ctx, "alpha", "creds", []byte("v1")))
	require.NoError(t, creds.Set(ctx, "alpha", "creds", nil))

	got, err := creds.Get(ctx, "alpha", "creds")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestCredentials_DeleteIdempotent(t *testing.T) {
	creds := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, creds.Delete(ctx, "alpha", "never-stored"))

	require.NoError(t, creds.Set(ctx, "alpha", "creds", []byte("v1")))
	require.NoError(t, creds.Delete(ctx, "alpha", "creds"))
	require.NoError(t, creds.Delete(ctx, "alpha", "creds"))

	got, err := creds.Get(ctx, "alpha", "creds")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestCredentials_DeleteAllScopedToSession(t *testing.T) {
	creds := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, creds.Set(ctx, "alpha", "creds", []byte("a1")))
	require.NoError(t, creds.Set(ctx, "alpha", "app-state-sync-key-AAAA", []byte("a2")))
	require.NoError(t, creds.Set(ctx, "beta", "creds", []byte("b1")))

	require.NoError(t, creds.DeleteAll(ctx, "alpha"))

	got, err := creds.Get(ctx, "alpha", "creds")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = creds.Get(ctx, "alpha", "app-state-sync-key-AAAA")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = creds.Get(ctx, "beta", "creds")
	require.NoError(t, err)
	require.Equal(t, []byte("b1"), got)
}

func TestCredentials_DeleteAllSparesSimilarlyNamedSessions(t *testing.T) {
	creds := openTestDB(t)
	ctx := context.Background()

	// "shop" must not reach into "shop-2", and "a_c" must not reach into
	// "abc"; both pairs are legal session keys.
	require.NoError(t, creds.Set(ctx, "shop", "creds", []byte("s1")))
	require.NoError(t, creds.Set(ctx, "shop-2", "creds", []byte("s2")))
	require.NoError(t, creds.Set(ctx, "a_c", "creds", []byte("u1")))
	require.NoError(t, creds.Set(ctx, "abc", "creds", []byte("u2")))

	require.NoError(t, creds.DeleteAll(ctx, "shop"))
	require.NoError(t, creds.DeleteAll(ctx, "a_c"))

	got, err := creds.Get(ctx, "shop-2", "creds")
	require.NoError(t, err)
	require.Equal(t, []byte("s2"), got)

	got, err = creds.Get(ctx, "abc", "creds")
	require.NoError(t, err)
	require.Equal(t, []byte("u2"), got)

	// The surviving rows must be in the database, not just the wiping
	// store's cache.
	fresh := NewCredentials(creds.db, 0, zerolog.Nop())
	got, err = fresh.Get(ctx, "shop-2", "creds")
	require.NoError(t, err)
	require.Equal(t, []byte("s2"), got)

	got, err = fresh.Get(ctx, "abc", "creds")
	require.NoError(t, err)
	require.Equal(t, []byte("u2"), got)
}

func TestCredentials_NoCollisionAcrossSessionKeyBoundary(t *testing.T) {
	creds := openTestDB(t)
	ctx := context.Background()

	// (a, b-creds) and (a-b, creds) are distinct rows.
	require.NoError(t, creds.Set(ctx, "a", "b-creds", []byte("first")))
	require.NoError(t, creds.Set(ctx, "a-b", "creds", []byte("second")))

	got, err := creds.Get(ctx, "a", "b-creds")
	require.NoError(t, err)
	require.Equal(t, []byte("first"), got)

	got, err = creds.Get(ctx, "a-b", "creds")
	require.NoError(t, err)
	require.Equal(t, []byte("second"), got)
}

func TestCredentials_MutationDoesNotLeakIntoCache(t *testing.T) {
	creds := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, creds.Set(ctx, "alpha", "creds", []byte("stable")))

	got, err := creds.Get(ctx, "alpha", "creds")
	require.NoError(t, err)
	got[0] = 'X'

	again, err := creds.Get(ctx, "alpha", "creds")
	require.NoError(t, err)
	require.Equal(t, []byte("stable"), again)
}

func TestCredentials_CacheEviction(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	creds := NewCredentials(db, 2, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, creds.Set(ctx, "alpha", "k1", []byte("v1")))
	require.NoError(t, creds.Set(ctx, "alpha", "k2", []byte("v2")))
	require.NoError(t, creds.Set(ctx, "alpha", "k3", []byte("v3")))

	// Eviction must never lose data, only cache entries.
	for _, k := range []string{"k1", "k2", "k3"} {
		got, err := creds.Get(ctx, "alpha", k)
		require.NoError(t, err)
		require.NotNil(t, got, k)
	}
}
