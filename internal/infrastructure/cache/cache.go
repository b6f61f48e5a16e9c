package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	entity "main/internal/domain/entity/ticker"
	"main/internal/domain/interfaces"
)

var _ interfaces.MarketPublisher = (*Store)(nil)

// ErrNotCached means no value has been published for the token yet, or it
// already expired.
var ErrNotCached = errors.New("no cached value for token")

const (
	barKeyPrefix    = "ticker:bar:"
	optionKeyPrefix = "ticker:option:"
	barsChannel     = "ticker.bars"
	optionsChannel  = "ticker.options"
)

// Store keeps the latest bar/snapshot per token in Redis and notifies
// streaming clients via pub/sub.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Entry
}

// NewStore wraps the given Redis client.
func NewStore(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
		logger: logger.WithField("component", "cache_store"),
	}
}

// PublishUnderlyingBar caches the latest bar and notifies subscribers.
func (s *Store) PublishUnderlyingBar(ctx context.Context, bar *entity.UnderlyingBar) error {
	return s.set(ctx, fmt.Sprintf("%s%d", barKeyPrefix, bar.Token), barsChannel, bar)
}

// PublishOptionSnapshot caches the latest snapshot and notifies subscribers.
func (s *Store) PublishOptionSnapshot(ctx context.Context, snapshot *entity.OptionSnapshot) error {
	return s.set(ctx, fmt.Sprintf("%s%d", optionKeyPrefix, snapshot.Token), optionsChannel, snapshot)
}

func (s *Store) set(ctx context.Context, key, channel string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := s.client.Set(ctx, key, body, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	if err := s.client.Publish(ctx, channel, body).Err(); err != nil {
		// The cached value is already in place; a missed notification is
		// recoverable on the next update.
		s.logger.WithError(err).WithField("channel", channel).Warn("publish notification failed")
	}
	return nil
}

// GetUnderlyingBar returns the latest cached bar for the token.
func (s *Store) GetUnderlyingBar(ctx context.Context, token int64) (*entity.UnderlyingBar, error) {
	var bar entity.UnderlyingBar
	if err := s.get(ctx, fmt.Sprintf("%s%d", barKeyPrefix, token), &bar); err != nil {
		return nil, err
	}
	return &bar, nil
}

// GetOptionSnapshot returns the latest cached snapshot for the token.
func (s *Store) GetOptionSnapshot(ctx context.Context, token int64) (*entity.OptionSnapshot, error) {
	var snapshot entity.OptionSnapshot
	if err := s.get(ctx, fmt.Sprintf("%s%d", optionKeyPrefix, token), &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *Store) get(ctx context.Context, key string, out any) error {
	body, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotCached
	}
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	return json.Unmarshal(body, out)
}
