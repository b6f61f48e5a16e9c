package interfaces

import (
	"context"
	"errors"
	"time"

	ticker "main/internal/domain/entity/ticker"
)

// Quote is one reference quote used to seed simulation state.
type Quote struct {
	Price  float64
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// HistoricalBar is one historical record returned by the upstream session.
type HistoricalBar struct {
	Close        float64
	Volume       int64
	OpenInterest int64
}

// SubscriptionMode selects how much detail the upstream feed sends per tick.
type SubscriptionMode string

const (
	ModeLTP   SubscriptionMode = "ltp"
	ModeQuote SubscriptionMode = "quote"
	ModeFull  SubscriptionMode = "full"
)

// UpstreamSession is one authenticated broker session owning its connection
// pool. The concrete transport is out of scope for the core.
type UpstreamSession interface {
	GetQuote(ctx context.Context, symbols []string) (map[string]Quote, error)
	FetchHistorical(ctx context.Context, token int64, interval string, from, to time.Time, withOI bool) ([]HistoricalBar, error)
	GetLastPrice(ctx context.Context, token int64) (float64, error)
	SubscribeTokens(ctx context.Context, tokens []int64, mode SubscriptionMode) error
	UnsubscribeTokens(ctx context.Context, tokens []int64) error
	ReadTicks(ctx context.Context) ([]ticker.RawTick, error)
	Close() error
}

// SessionFactory acquires the upstream session for one account. A factory
// error is fatal to that account's streaming task only.
type SessionFactory func(ctx context.Context, account string) (UpstreamSession, error)

// InstrumentMetadata resolves a bare token to a full instrument plus its
// active flag. Inactive tokens are silently skipped by incremental add.
type InstrumentMetadata struct {
	Instrument ticker.Instrument
	IsActive   bool
}

// ErrInstrumentNotFound reports a token with no registry row. Incremental
// add treats it like an inactive token, not a failure.
var ErrInstrumentNotFound = errors.New("instrument not found")

// InstrumentRegistry looks up instrument metadata by token.
type InstrumentRegistry interface {
	FetchMetadata(ctx context.Context, token int64) (*InstrumentMetadata, error)
}

// SubscriptionStore persists the desired subscription universe so it
// survives a restart. A nil account keeps the token desired but clears
// its owner; Remove drops the token from the universe entirely.
type SubscriptionStore interface {
	UpdateAccount(ctx context.Context, token int64, account *string) error
	Remove(ctx context.Context, token int64) error
	ListDesired(ctx context.Context) ([]int64, error)
}

// MarketPublisher hands enriched records to downstream consumers. Failures
// are logged by the caller, never propagated as fatal to the tick pipeline.
type MarketPublisher interface {
	PublishUnderlyingBar(ctx context.Context, bar *ticker.UnderlyingBar) error
	PublishOptionSnapshot(ctx context.Context, snapshot *ticker.OptionSnapshot) error
}
