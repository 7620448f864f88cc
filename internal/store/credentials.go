package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// defaultCredCacheSize bounds the advisory in-memory cache. The database is
// authoritative; eviction only costs a re-read.
const defaultCredCacheSize = 1024

// credID addresses one credential row. Session and key stay separate fields
// end to end; flattening them into one string would let a "-" or "_" in a
// session key collide with or wipe a neighboring session's rows.
type credID struct {
	session string
	key     string
}

// Credentials is the durable, namespaced credential store backing every
// session's auth material. Payloads are stored as BLOBs, so binary key
// material round-trips byte for byte.
type Credentials struct {
	db  *sql.DB
	log zerolog.Logger

	mu       sync.Mutex
	cache    map[credID][]byte
	maxCache int
}

// NewCredentials wraps db with an advisory read cache of at most maxCache
// entries. maxCache <= 0 selects the default.
func NewCredentials(db *sql.DB, maxCache int, log zerolog.Logger) *Credentials {
	if maxCache <= 0 {
		maxCache = defaultCredCacheSize
	}
	return &Credentials{
		db:       db,
		log:      log.With().Str("component", "credstore").Logger(),
		cache:    make(map[credID][]byte),
		maxCache: maxCache,
	}
}

// Get returns the payload for (session, key), or nil when absent. Errors are
// real storage failures and must propagate: the engine corrupts its protocol
// session if it proceeds on silently-missing credentials.
func (c *Credentials) Get(ctx context.Context, session, key string) ([]byte, error) {
	id := credID{session: session, key: key}

	c.mu.Lock()
	if cached, ok := c.cache[id]; ok {
		out := make([]byte, len(cached))
		copy(out, cached)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	var payload []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT payload FROM auth_credentials WHERE session_id = ? AND cred_key = ?`,
		session, key,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credentials get %s/%s: %w", session, key, err)
	}

	c.mu.Lock()
	c.put(id, payload)
	c.mu.Unlock()

	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

// Set upserts the payload for (session, key). An empty payload is a delete;
// that is how the engine signals key revocation.
func (c *Credentials) Set(ctx context.Context, session, key string, payload []byte) error {
	if len(payload) == 0 {
		return c.Delete(ctx, session, key)
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO auth_credentials (session_id, cred_key, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, cred_key) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		session, key, payload, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("credentials set %s/%s: %w", session, key, err)
	}

	c.mu.Lock()
	c.put(credID{session: session, key: key}, payload)
	c.mu.Unlock()
	return nil
}

// Delete removes (session, key). Deleting an absent key is not an error.
func (c *Credentials) Delete(ctx context.Context, session, key string) error {
	c.mu.Lock()
	delete(c.cache, credID{session: session, key: key})
	c.mu.Unlock()

	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM auth_credentials WHERE session_id = ? AND cred_key = ?`,
		session, key); err != nil {
		return fmt.Errorf("credentials delete %s/%s: %w", session, key, err)
	}
	return nil
}

// DeleteAll wipes every credential row belonging to session, and only that
// session. The cache is cleared before the SQL delete so a concurrent read
// cannot resurrect wiped keys from memory.
func (c *Credentials) DeleteAll(ctx context.Context, session string) error {
	c.mu.Lock()
	for id := range c.cache {
		if id.session == session {
			delete(c.cache, id)
		}
	}
	c.mu.Unlock()

	res, err := c.db.ExecContext(ctx,
		`DELETE FROM auth_credentials WHERE session_id = ?`, session)
	if err != nil {
		return fmt.Errorf("credentials wipe %s: %w", session, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		c.log.Debug().Str("session_id", session).Int64("rows", n).Msg("credentials wiped")
	}
	return nil
}

// put stores its own copy of payload under the cache bound. Caller holds c.mu.
func (c *Credentials) put(id credID, payload []byte) {
	if len(c.cache) >= c.maxCache {
		// Advisory cache: evict an arbitrary entry rather than track LRU order.
		for victim := range c.cache {
			delete(c.cache, victim)
			break
		}
	}
	stored := make([]byte, len(payload))
	copy(stored, payload)
	c.cache[id] = stored
}
