package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"main/internal/domain/interfaces"
)

var _ interfaces.SubscriptionStore = (*Store)(nil)

// Store persists the desired subscription universe in the
// ticker_subscriptions table so it survives a restart. One row per token;
// a NULL account means the token is desired but currently unassigned.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

func NewStoreWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// UpdateAccount upserts the token's assignment. A nil account keeps the
// token desired but clears its owner.
func (s *Store) UpdateAccount(ctx context.Context, token int64, account *string) error {
	const query = `
		INSERT INTO ticker_subscriptions (instrument_token, account, created_at, updated_at)
		VALUES ($1,$2,$3,$3)
		ON CONFLICT (instrument_token) DO UPDATE
		SET account=EXCLUDED.account,
			updated_at=EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query, token, account, time.Now().UTC())
	return err
}

// Remove drops the token from the desired universe entirely.
func (s *Store) Remove(ctx context.Context, token int64) error {
	const query = `DELETE FROM ticker_subscriptions WHERE instrument_token=$1`
	_, err := s.pool.Exec(ctx, query, token)
	return err
}

// ListDesired returns every desired token in insertion order.
func (s *Store) ListDesired(ctx context.Context) ([]int64, error) {
	const query = `
		SELECT instrument_token
		FROM ticker_subscriptions
		ORDER BY created_at, instrument_token`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []int64
	for rows.Next() {
		var token int64
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}
