package session

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSlot keeps sessions in a shared sessions table, one row per
// session id and key.
type PostgresSlot struct {
	db        *pgxpool.Pool
	sessionID string
}

func NewPostgresSlot(db *pgxpool.Pool, sessionID string) *PostgresSlot {
	return &PostgresSlot{db: db, sessionID: sessionID}
}

func (p *PostgresSlot) EnsureSchema(ctx context.Context) error {
	_, err := p.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT NOT NULL,
		key TEXT NOT NULL,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (session_id, key)
	)`)
	return err
}

func (p *PostgresSlot) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := p.db.QueryRow(ctx, `SELECT payload FROM sessions WHERE session_id=$1 AND key=$2`, p.sessionID, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (p *PostgresSlot) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.db.Exec(ctx, `INSERT INTO sessions (session_id, key, payload, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (session_id, key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`, p.sessionID, key, value)
	return err
}

func (p *PostgresSlot) Clear(ctx context.Context, key string) error {
	_, err := p.db.Exec(ctx, `DELETE FROM sessions WHERE session_id=$1 AND key=$2`, p.sessionID, key)
	return err
}

var _ Slot = (*PostgresSlot)(nil)
