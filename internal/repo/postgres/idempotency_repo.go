package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyRepo stores replayable checkout responses when no Redis is
// configured. Keys arrive already hashed from the middleware.
type IdempotencyRepo struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepo(pool *pgxpool.Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

func (r *IdempotencyRepo) Get(ctx context.Context, key string) (string, error) {
	const q = `SELECT response FROM checkout_idempotency WHERE key_hash=$1 AND expires_at > now()`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var resp string
	err := r.pool.QueryRow(ctx, q, key).Scan(&resp)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return resp, err
}

func (r *IdempotencyRepo) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	const q = `INSERT INTO checkout_idempotency (key_hash, response, expires_at)
  VALUES ($1, $2, $3)
  ON CONFLICT (key_hash) DO UPDATE SET response=EXCLUDED.response, expires_at=EXCLUDED.expires_at`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, key, value, time.Now().Add(ttl))
	return err
}

func (r *IdempotencyRepo) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, `DELETE FROM checkout_idempotency WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
