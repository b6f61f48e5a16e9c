package ticker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"main/internal/application/service/greeks"
	entity "main/internal/domain/entity/ticker"
	"main/internal/domain/interfaces"
)

// paisePerRupee converts the feed's fixed-point depth prices to rupees.
var paisePerRupee = decimal.NewFromInt(100)

// ProcessorConfig carries the pricing parameters the processor needs.
type ProcessorConfig struct {
	RiskFreeRate      float64
	DefaultVolatility float64
}

// ProcessorStats is an observability view over processing activity.
type ProcessorStats struct {
	UnderlyingTicks   int64                `json:"underlying_ticks"`
	FutureTicks       int64                `json:"future_ticks"`
	OptionTicks       int64                `json:"option_ticks"`
	SkippedExpired    int64                `json:"skipped_expired"`
	SkippedNoSpot     int64                `json:"skipped_no_spot"`
	SkippedUnknown    int64                `json:"skipped_unknown"`
	PublishFailures   int64                `json:"publish_failures"`
	LastUnderlying    float64              `json:"last_underlying"`
	HasUnderlying     bool                 `json:"has_underlying"`
	LastTickByAccount map[string]time.Time `json:"last_tick_by_account"`
}

// Processor turns raw ticks into validated, enriched, published output. It
// owns the shared last-underlying-price cell and the per-account liveness
// timestamps.
type Processor struct {
	cfg       ProcessorConfig
	publisher interfaces.MarketPublisher
	logger    *logrus.Entry

	mu             sync.RWMutex
	lastUnderlying float64
	hasUnderlying  bool
	lastTickAt     map[string]time.Time

	underlyingTicks int64
	futureTicks     int64
	optionTicks     int64
	skippedExpired  int64
	skippedNoSpot   int64
	skippedUnknown  int64
	publishFailures int64
}

// NewProcessor creates a processor publishing through the given publisher.
func NewProcessor(cfg ProcessorConfig, publisher interfaces.MarketPublisher, logger *logrus.Logger) *Processor {
	return &Processor{
		cfg:        cfg,
		publisher:  publisher,
		logger:     logger.WithField("component", "tick_processor"),
		lastTickAt: make(map[string]time.Time),
	}
}

// LastUnderlyingPrice returns the most recently observed underlying price.
// It is a best-effort hint: an option tick racing the underlying update uses
// the previous value rather than blocking.
func (p *Processor) LastUnderlyingPrice() (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastUnderlying, p.hasUnderlying
}

// SetUnderlyingPrice records a new shared underlying price. Exposed so the
// mock generator can keep option pricing coherent with its simulated spot.
func (p *Processor) SetUnderlyingPrice(price float64) {
	p.mu.Lock()
	p.lastUnderlying = price
	p.hasUnderlying = true
	p.mu.Unlock()
}

// ProcessTicks runs one batch of raw ticks for one account in arrival order.
// Unknown tokens, expired contracts and options without a known spot are
// skipped without error; publish failures are logged and never fatal.
func (p *Processor) ProcessTicks(ctx context.Context, account string, tokenMap map[int64]entity.Instrument, ticks []entity.RawTick, marketDate time.Time) {
	if len(ticks) == 0 {
		return
	}
	p.touchAccount(account)

	for i := range ticks {
		tick := &ticks[i]
		inst, ok := tokenMap[tick.Token]
		if !ok {
			p.count(&p.skippedUnknown)
			continue
		}
		if inst.IsDerivative() && inst.ExpiredBefore(marketDate) {
			p.count(&p.skippedExpired)
			continue
		}
		switch {
		case inst.Kind == entity.KindUnderlying:
			p.processUnderlying(ctx, inst, tick)
		case inst.Kind == entity.KindFuture:
			p.processFuture(ctx, inst, tick)
		case inst.IsOption():
			p.processOption(ctx, inst, tick, marketDate)
		}
	}
}

// ProcessBar accepts an already-built bar, applying the same expiry filter
// and accounting as the raw-tick path. An underlying bar's close becomes
// the shared underlying price.
func (p *Processor) ProcessBar(ctx context.Context, account string, inst entity.Instrument, bar *entity.UnderlyingBar, marketDate time.Time) {
	p.touchAccount(account)
	if inst.IsDerivative() && inst.ExpiredBefore(marketDate) {
		p.count(&p.skippedExpired)
		return
	}
	if inst.Kind == entity.KindUnderlying {
		p.SetUnderlyingPrice(bar.Close)
		p.count(&p.underlyingTicks)
	} else {
		p.count(&p.futureTicks)
	}
	if err := p.publisher.PublishUnderlyingBar(ctx, bar); err != nil {
		p.count(&p.publishFailures)
		p.logger.WithError(err).WithField("token", bar.Token).Warn("publish bar failed")
	}
}

// ProcessSnapshot accepts an already-enriched option snapshot and publishes
// it as-is, so upstream-built depth ladders and greeks survive intact.
func (p *Processor) ProcessSnapshot(ctx context.Context, account string, inst entity.Instrument, snapshot *entity.OptionSnapshot, marketDate time.Time) {
	p.touchAccount(account)
	if inst.ExpiredBefore(marketDate) {
		p.count(&p.skippedExpired)
		return
	}
	p.count(&p.optionTicks)
	if err := p.publisher.PublishOptionSnapshot(ctx, snapshot); err != nil {
		p.count(&p.publishFailures)
		p.logger.WithError(err).WithField("token", snapshot.Token).Warn("publish option snapshot failed")
	}
}

func (p *Processor) processUnderlying(ctx context.Context, inst entity.Instrument, tick *entity.RawTick) {
	p.SetUnderlyingPrice(tick.LastPrice)
	p.count(&p.underlyingTicks)
	p.publishBar(ctx, inst, tick)
}

func (p *Processor) processFuture(ctx context.Context, inst entity.Instrument, tick *entity.RawTick) {
	p.count(&p.futureTicks)
	p.publishBar(ctx, inst, tick)
}

func (p *Processor) publishBar(ctx context.Context, inst entity.Instrument, tick *entity.RawTick) {
	bar := &entity.UnderlyingBar{
		ID:        uuid.New(),
		Token:     inst.Token,
		Symbol:    inst.TradingSymbol,
		Open:      tick.LastPrice,
		High:      tick.LastPrice,
		Low:       tick.LastPrice,
		Close:     tick.LastPrice,
		Timestamp: tickTime(tick),
	}
	if tick.Volume != nil {
		bar.Volume = *tick.Volume
	}
	if err := p.publisher.PublishUnderlyingBar(ctx, bar); err != nil {
		p.count(&p.publishFailures)
		p.logger.WithError(err).WithField("token", inst.Token).Warn("publish bar failed")
	}
}

func (p *Processor) processOption(ctx context.Context, inst entity.Instrument, tick *entity.RawTick, marketDate time.Time) {
	spot, ok := p.LastUnderlyingPrice()
	if !ok {
		p.count(&p.skippedNoSpot)
		return
	}

	g, err := greeks.Compute(greeks.Input{
		Spot:         spot,
		Strike:       inst.Strike,
		TimeToExpiry: inst.YearsToExpiry(marketDate),
		Rate:         p.cfg.RiskFreeRate,
		Volatility:   p.cfg.DefaultVolatility,
		Side:         inst.Kind,
	})
	if err != nil {
		p.logger.WithError(err).WithField("token", inst.Token).Warn("greeks computation failed")
		return
	}

	snapshot := &entity.OptionSnapshot{
		ID:         uuid.New(),
		Token:      inst.Token,
		Symbol:     inst.TradingSymbol,
		Underlying: inst.Underlying,
		Kind:       inst.Kind,
		Strike:     inst.Strike,
		Expiry:     inst.Expiry,
		LastPrice:  tick.LastPrice,
		IV:         p.cfg.DefaultVolatility,
		Greeks:     g,
		Timestamp:  tickTime(tick),
	}
	if tick.Volume != nil {
		snapshot.Volume = *tick.Volume
	}
	if tick.OI != nil {
		snapshot.OpenInterest = *tick.OI
	}
	applyDepth(snapshot, tick.Depth)

	p.count(&p.optionTicks)
	if err := p.publisher.PublishOptionSnapshot(ctx, snapshot); err != nil {
		p.count(&p.publishFailures)
		p.logger.WithError(err).WithField("token", inst.Token).Warn("publish option snapshot failed")
	}
}

// applyDepth normalizes the fixed-point depth ladder to decimal price units
// and aggregates total buy/sell quantity.
func applyDepth(snapshot *entity.OptionSnapshot, depth *entity.Depth) {
	if depth == nil {
		return
	}
	snapshot.BidLevels = normalizeLevels(depth.Buy)
	snapshot.AskLevels = normalizeLevels(depth.Sell)
	for _, level := range snapshot.BidLevels {
		snapshot.TotalBuyQty += level.Quantity
	}
	for _, level := range snapshot.AskLevels {
		snapshot.TotalSellQty += level.Quantity
	}
	if len(snapshot.BidLevels) > 0 {
		best := snapshot.BidLevels[0]
		snapshot.BestBid = &best
	}
	if len(snapshot.AskLevels) > 0 {
		best := snapshot.AskLevels[0]
		snapshot.BestAsk = &best
	}
}

func normalizeLevels(levels []entity.DepthLevel) []entity.SnapshotLevel {
	if len(levels) == 0 {
		return nil
	}
	out := make([]entity.SnapshotLevel, 0, len(levels))
	for _, level := range levels {
		price, _ := decimal.NewFromInt(level.Price).Div(paisePerRupee).Float64()
		out = append(out, entity.SnapshotLevel{
			Price:    price,
			Quantity: level.Quantity,
			Orders:   level.Orders,
		})
	}
	return out
}

func tickTime(tick *entity.RawTick) time.Time {
	if tick.Timestamp != nil {
		return *tick.Timestamp
	}
	return time.Now().UTC()
}

func (p *Processor) touchAccount(account string) {
	p.mu.Lock()
	p.lastTickAt[account] = time.Now().UTC()
	p.mu.Unlock()
}

func (p *Processor) count(field *int64) {
	p.mu.Lock()
	*field++
	p.mu.Unlock()
}

// Stats returns a copy of the processing counters.
func (p *Processor) Stats() ProcessorStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	lastTicks := make(map[string]time.Time, len(p.lastTickAt))
	for account, at := range p.lastTickAt {
		lastTicks[account] = at
	}
	return ProcessorStats{
		UnderlyingTicks:   p.underlyingTicks,
		FutureTicks:       p.futureTicks,
		OptionTicks:       p.optionTicks,
		SkippedExpired:    p.skippedExpired,
		SkippedNoSpot:     p.skippedNoSpot,
		SkippedUnknown:    p.skippedUnknown,
		PublishFailures:   p.publishFailures,
		LastUnderlying:    p.lastUnderlying,
		HasUnderlying:     p.hasUnderlying,
		LastTickByAccount: lastTicks,
	}
}

// ResetState clears the shared underlying price, liveness timestamps and
// counters. Used between test runs and on reinitialization.
func (p *Processor) ResetState() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastUnderlying = 0
	p.hasUnderlying = false
	p.lastTickAt = make(map[string]time.Time)
	p.underlyingTicks = 0
	p.futureTicks = 0
	p.optionTicks = 0
	p.skippedExpired = 0
	p.skippedNoSpot = 0
	p.skippedUnknown = 0
	p.publishFailures = 0
}
