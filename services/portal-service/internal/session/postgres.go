package session

import (
	"context"
	"errors"

	"github.com/Sakin08/Doctors-Appointment/libs/db"
	"github.com/jackc/pgx/v5"
)

// PostgresStore keeps the token in the client_storage key/value table under one owner.
type PostgresStore struct {
	pool  *db.Pool
	owner string
}

func NewPostgresStore(pool *db.Pool, owner string) *PostgresStore {
	if owner == "" {
		owner = "default"
	}
	return &PostgresStore{pool: pool, owner: owner}
}

func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS client_storage (
			owner      TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (owner, key)
		)
	`)
	return err
}

func (p *PostgresStore) Load(ctx context.Context) (string, error) {
	var value string
	err := p.pool.QueryRow(ctx, `
		SELECT value
		FROM client_storage
		WHERE owner = $1 AND key = $2
	`, p.owner, Key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

func (p *PostgresStore) Save(ctx context.Context, token string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO client_storage (owner, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, p.owner, Key, token)
	return err
}

func (p *PostgresStore) Delete(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		DELETE FROM client_storage
		WHERE owner = $1 AND key = $2
	`, p.owner, Key)
	return err
}
