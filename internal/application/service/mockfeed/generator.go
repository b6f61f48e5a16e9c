package mockfeed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"main/internal/application/service/greeks"
	entity "main/internal/domain/entity/ticker"
	"main/internal/domain/interfaces"
)

var ErrUnderlyingNotSeeded = errors.New("underlying is not seeded")

const (
	depthLevels      = 5
	defaultTickSize  = 0.05
	minOptionPrice   = 0.05
	historyLookback  = 5 * 24 * time.Hour
	historyInterval  = "day"
	seedIVFallback   = 0.15
	volumeStepLimit  = 5000
	oiStepLimit      = 500
	depthQtyBase     = 50
	depthQtySpread   = 500
	depthOrdersLimit = 20
)

// Config carries the simulation parameters.
type Config struct {
	UnderlyingToken   int64
	UnderlyingSymbol  string
	BasePrice         float64
	BaseVolume        int64
	RiskFreeRate      float64
	DefaultVolatility float64
	// StepPercent bounds one random-walk move of the underlying, e.g. 0.001
	// for ±0.1% per bar.
	StepPercent float64
	// Now supplies "today" for expiry cleanup; injected so the exchange
	// calendar stays an external concern.
	Now func() time.Time
	// Seed fixes the random source for reproducible runs; 0 means
	// time-seeded.
	Seed int64
}

// underlyingBuilder is the mutable simulation state for the index. It is
// touched only while the generator lock is held.
type underlyingBuilder struct {
	open   float64
	high   float64
	low    float64
	last   float64
	volume int64
}

// optionBuilder is the mutable simulation state for one mocked option.
type optionBuilder struct {
	inst   entity.Instrument
	last   float64
	volume int64
	oi     int64
	iv     float64
}

// Generator simulates the underlying and its option contracts with the same
// external shape as live data. One mutex guards all builders; published
// snapshots are immutable values swapped in atomically, so readers never
// take a lock and never observe a half-written snapshot.
type Generator struct {
	cfg    Config
	logger *logrus.Entry

	mu         sync.Mutex
	rng        *rand.Rand
	underlying *underlyingBuilder
	options    map[int64]*optionBuilder

	underlyingSnap atomic.Pointer[entity.UnderlyingSnapshot]
	optionSnaps    sync.Map // int64 -> *entity.OptionSnapshot
}

// NewGenerator creates a generator with the given simulation parameters.
func NewGenerator(cfg Config, logger *logrus.Logger) *Generator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.StepPercent <= 0 {
		cfg.StepPercent = 0.001
	}
	if cfg.DefaultVolatility <= 0 {
		cfg.DefaultVolatility = seedIVFallback
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		cfg:     cfg,
		logger:  logger.WithField("component", "mock_generator"),
		rng:     rand.New(rand.NewSource(seed)),
		options: make(map[int64]*optionBuilder),
	}
}

// EnsureUnderlyingSeeded initializes the underlying simulation state once.
// Double-checked: a snapshot that already exists returns immediately, and
// concurrent callers converge on exactly one upstream fetch. A nil session
// seeds from the configured base price instead of fetching.
func (g *Generator) EnsureUnderlyingSeeded(ctx context.Context, session interfaces.UpstreamSession) error {
	if g.underlyingSnap.Load() != nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.underlyingSnap.Load() != nil {
		return nil
	}

	price := g.cfg.BasePrice
	volume := g.cfg.BaseVolume
	if session != nil {
		quotes, err := session.GetQuote(ctx, []string{g.cfg.UnderlyingSymbol})
		if err != nil {
			return fmt.Errorf("seed underlying quote: %w", err)
		}
		if q, ok := quotes[g.cfg.UnderlyingSymbol]; ok && q.Price > 0 {
			price = q.Price
			if q.Volume > 0 {
				volume = q.Volume
			}
		}
	}
	if price <= 0 {
		return fmt.Errorf("underlying seed price must be positive, got %f", price)
	}

	g.underlying = &underlyingBuilder{
		open:   price,
		high:   price,
		low:    price,
		last:   price,
		volume: volume,
	}
	g.publishUnderlyingLocked()
	g.logger.WithFields(logrus.Fields{
		"symbol": g.cfg.UnderlyingSymbol,
		"price":  price,
	}).Info("underlying seeded")
	return nil
}

// GenerateUnderlyingBar advances the underlying random walk by one step and
// publishes a new immutable snapshot. Each call is atomic.
func (g *Generator) GenerateUnderlyingBar(ctx context.Context) (*entity.UnderlyingBar, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.underlying == nil {
		return nil, ErrUnderlyingNotSeeded
	}

	b := g.underlying
	step := (g.rng.Float64()*2 - 1) * g.cfg.StepPercent
	b.last = b.last * (1 + step)
	if b.last > b.high {
		b.high = b.last
	}
	if b.last < b.low {
		b.low = b.last
	}
	b.volume += g.rng.Int63n(volumeStepLimit)

	g.publishUnderlyingLocked()

	return &entity.UnderlyingBar{
		ID:        uuid.New(),
		Token:     g.cfg.UnderlyingToken,
		Symbol:    g.cfg.UnderlyingSymbol,
		Open:      b.open,
		High:      b.high,
		Low:       b.low,
		Close:     b.last,
		Volume:    b.volume,
		Timestamp: g.cfg.Now().UTC(),
	}, nil
}

// publishUnderlyingLocked swaps in a fully-populated snapshot. Callers hold
// the generator lock.
func (g *Generator) publishUnderlyingLocked() {
	b := g.underlying
	snap := &entity.UnderlyingSnapshot{
		Token:     g.cfg.UnderlyingToken,
		Symbol:    g.cfg.UnderlyingSymbol,
		Open:      b.open,
		High:      b.high,
		Low:       b.low,
		LastPrice: b.last,
		Volume:    b.volume,
		UpdatedAt: g.cfg.Now().UTC(),
	}
	g.underlyingSnap.Store(snap)
}

// UnderlyingSnapshot returns the currently published underlying snapshot
// without taking any lock.
func (g *Generator) UnderlyingSnapshot() (*entity.UnderlyingSnapshot, bool) {
	snap := g.underlyingSnap.Load()
	return snap, snap != nil
}

// EnsureOptionsSeeded seeds simulation state for every instrument not yet
// mocked, using one reference history fetch and one reference quote per
// instrument. Already-seeded tokens are skipped without refetching. Expired
// contracts are cleaned up on every call.
func (g *Generator) EnsureOptionsSeeded(ctx context.Context, session interfaces.UpstreamSession, instruments []entity.Instrument) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cleanupExpiredLocked()

	var errs []error
	for _, inst := range instruments {
		if !inst.IsOption() {
			continue
		}
		if _, seeded := g.options[inst.Token]; seeded {
			continue
		}
		if err := g.seedOptionLocked(ctx, session, inst); err != nil {
			errs = append(errs, fmt.Errorf("seed option %d: %w", inst.Token, err))
		}
	}
	return errors.Join(errs...)
}

func (g *Generator) seedOptionLocked(ctx context.Context, session interfaces.UpstreamSession, inst entity.Instrument) error {
	var (
		price  float64
		volume int64
		oi     int64
	)
	if session != nil {
		now := g.cfg.Now().UTC()
		bars, err := session.FetchHistorical(ctx, inst.Token, historyInterval, now.Add(-historyLookback), now, true)
		if err != nil {
			return fmt.Errorf("fetch historical: %w", err)
		}
		if len(bars) > 0 {
			last := bars[len(bars)-1]
			price = last.Close
			volume = last.Volume
			oi = last.OpenInterest
		}
		if price <= 0 {
			ltp, err := session.GetLastPrice(ctx, inst.Token)
			if err != nil {
				return fmt.Errorf("fetch last price: %w", err)
			}
			price = ltp
		}
	}
	if price <= 0 {
		price = g.referencePremiumLocked(inst)
	}

	g.options[inst.Token] = &optionBuilder{
		inst:   inst,
		last:   price,
		volume: volume,
		oi:     oi,
		iv:     g.cfg.DefaultVolatility,
	}
	g.publishOptionLocked(g.options[inst.Token])
	return nil
}

// referencePremiumLocked estimates a plausible seed premium from the current
// simulated spot when no reference data is reachable.
func (g *Generator) referencePremiumLocked(inst entity.Instrument) float64 {
	spot := g.cfg.BasePrice
	if g.underlying != nil {
		spot = g.underlying.last
	}
	result, err := greeks.Compute(greeks.Input{
		Spot:         spot,
		Strike:       inst.Strike,
		TimeToExpiry: inst.YearsToExpiry(g.cfg.Now().UTC()),
		Rate:         g.cfg.RiskFreeRate,
		Volatility:   g.cfg.DefaultVolatility,
		Side:         inst.Kind,
	})
	if err != nil || result.ModelPrice < minOptionPrice {
		return minOptionPrice
	}
	return result.ModelPrice
}

// GenerateOptionSnapshot advances one option's simulation state and
// publishes a new immutable snapshot with recomputed Greeks and a synthetic
// five-level depth ladder on both sides.
func (g *Generator) GenerateOptionSnapshot(ctx context.Context, inst entity.Instrument) (*entity.OptionSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.options[inst.Token]
	if !ok {
		if err := g.seedOptionLocked(ctx, nil, inst); err != nil {
			return nil, err
		}
		b = g.options[inst.Token]
	}

	drift := (g.rng.Float64()*2 - 1) * b.iv * g.cfg.StepPercent * 100
	b.last = b.last * (1 + drift)
	if b.last < minOptionPrice {
		b.last = minOptionPrice
	}
	b.volume += g.rng.Int63n(volumeStepLimit)
	b.oi += g.rng.Int63n(oiStepLimit)

	snap := g.publishOptionLocked(b)
	return snap, nil
}

// publishOptionLocked builds the complete snapshot for the builder's current
// state and swaps it in. Callers hold the generator lock.
func (g *Generator) publishOptionLocked(b *optionBuilder) *entity.OptionSnapshot {
	spot := g.cfg.BasePrice
	if g.underlying != nil {
		spot = g.underlying.last
	}

	result, err := greeks.Compute(greeks.Input{
		Spot:         spot,
		Strike:       b.inst.Strike,
		TimeToExpiry: b.inst.YearsToExpiry(g.cfg.Now().UTC()),
		Rate:         g.cfg.RiskFreeRate,
		Volatility:   b.iv,
		Side:         b.inst.Kind,
	})
	if err != nil {
		g.logger.WithError(err).WithField("token", b.inst.Token).Warn("mock greeks computation failed")
	}

	tickSize := b.inst.TickSize
	if tickSize <= 0 {
		tickSize = defaultTickSize
	}

	snap := &entity.OptionSnapshot{
		ID:           uuid.New(),
		Token:        b.inst.Token,
		Symbol:       b.inst.TradingSymbol,
		Underlying:   b.inst.Underlying,
		Kind:         b.inst.Kind,
		Strike:       b.inst.Strike,
		Expiry:       b.inst.Expiry,
		LastPrice:    b.last,
		Volume:       b.volume,
		OpenInterest: b.oi,
		IV:           b.iv,
		Greeks:       result,
		Timestamp:    g.cfg.Now().UTC(),
	}
	g.buildDepthLocked(snap, b.last, tickSize)

	g.optionSnaps.Store(b.inst.Token, snap)
	return snap
}

// buildDepthLocked synthesizes a five-level ladder on each side of the last
// price.
func (g *Generator) buildDepthLocked(snap *entity.OptionSnapshot, last, tickSize float64) {
	bids := make([]entity.SnapshotLevel, 0, depthLevels)
	asks := make([]entity.SnapshotLevel, 0, depthLevels)
	for i := 1; i <= depthLevels; i++ {
		bidPrice := last - float64(i)*tickSize
		if bidPrice < 0 {
			bidPrice = 0
		}
		bid := entity.SnapshotLevel{
			Price:    bidPrice,
			Quantity: depthQtyBase + g.rng.Int63n(depthQtySpread),
			Orders:   1 + g.rng.Int63n(depthOrdersLimit),
		}
		ask := entity.SnapshotLevel{
			Price:    last + float64(i)*tickSize,
			Quantity: depthQtyBase + g.rng.Int63n(depthQtySpread),
			Orders:   1 + g.rng.Int63n(depthOrdersLimit),
		}
		bids = append(bids, bid)
		asks = append(asks, ask)
		snap.TotalBuyQty += bid.Quantity
		snap.TotalSellQty += ask.Quantity
	}
	snap.BidLevels = bids
	snap.AskLevels = asks
	best := bids[0]
	snap.BestBid = &best
	bestAsk := asks[0]
	snap.BestAsk = &bestAsk
}

// OptionSnapshot returns the currently published snapshot for the token
// without taking any lock.
func (g *Generator) OptionSnapshot(token int64) (*entity.OptionSnapshot, bool) {
	value, ok := g.optionSnaps.Load(token)
	if !ok {
		return nil, false
	}
	return value.(*entity.OptionSnapshot), true
}

// CleanupExpired removes every mocked option whose expiry is strictly before
// today and returns the number removed. Unparseable or absent expiries are
// kept.
func (g *Generator) CleanupExpired() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cleanupExpiredLocked()
}

func (g *Generator) cleanupExpiredLocked() int {
	today := g.cfg.Now().UTC()
	removed := 0
	for token, b := range g.options {
		if b.inst.ExpiredBefore(today) {
			delete(g.options, token)
			g.optionSnaps.Delete(token)
			removed++
		}
	}
	if removed > 0 {
		g.logger.WithField("removed", removed).Info("cleaned up expired mock options")
	}
	return removed
}

// StateSize returns the count of currently mocked options.
func (g *Generator) StateSize() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.options)
}

// ResetState clears the underlying and every option builder/snapshot pair.
func (g *Generator) ResetState() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.underlying = nil
	g.underlyingSnap.Store(nil)
	g.options = make(map[int64]*optionBuilder)
	g.optionSnaps.Range(func(key, _ any) bool {
		g.optionSnaps.Delete(key)
		return true
	})
}
