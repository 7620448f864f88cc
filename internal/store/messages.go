package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Messages archives every inbound and outbound message payload by message id.
// Retransmissions overwrite. Archival is a durability nicety: callers on the
// event path log and swallow errors rather than letting a failed write make
// the session look unhealthy.
type Messages struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewMessages(db *sql.DB, log zerolog.Logger) *Messages {
	return &Messages{db: db, log: log.With().Str("component", "msgarchive").Logger()}
}

// Upsert stores payload under messageID, replacing any earlier copy.
func (m *Messages) Upsert(ctx context.Context, messageID string, payload []byte) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO message_archive (message_id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (message_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		messageID, payload, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("archive upsert %s: %w", messageID, err)
	}
	return nil
}

// Get returns the archived payload for messageID, or nil when unknown.
func (m *Messages) Get(ctx context.Context, messageID string) ([]byte, error) {
	var payload []byte
	err := m.db.QueryRowContext(ctx,
		`SELECT payload FROM message_archive WHERE message_id = ?`, messageID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("archive get %s: %w", messageID, err)
	}
	return payload, nil
}
