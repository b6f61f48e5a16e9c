package ticker

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	entity "main/internal/domain/entity/ticker"
)

var testMarketDate = time.Date(2025, 9, 15, 9, 15, 0, 0, time.UTC)

func testProcessor(pub *fakePublisher) *Processor {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewProcessor(ProcessorConfig{RiskFreeRate: 0.065, DefaultVolatility: 0.15}, pub, logger)
}

func testTokenMap() map[int64]entity.Instrument {
	return map[int64]entity.Instrument{
		100: {Token: 100, TradingSymbol: "NIFTY 50", Underlying: "NIFTY", Kind: entity.KindUnderlying},
		200: {Token: 200, TradingSymbol: "NIFTY25SEPFUT", Underlying: "NIFTY", Kind: entity.KindFuture, Expiry: "2025-09-25"},
		300: {Token: 300, TradingSymbol: "NIFTY25SEP24000CE", Underlying: "NIFTY", Kind: entity.KindCall, Strike: 24000, Expiry: "2025-09-25"},
		400: {Token: 400, TradingSymbol: "NIFTY25AUG24000CE", Underlying: "NIFTY", Kind: entity.KindCall, Strike: 24000, Expiry: "2025-08-28"},
	}
}

func TestProcessTicksUnderlyingUpdatesSharedPriceAndPublishes(t *testing.T) {
	pub := &fakePublisher{}
	p := testProcessor(pub)

	volume := int64(1_000_000)
	p.ProcessTicks(context.Background(), "acc1", testTokenMap(), []entity.RawTick{
		{Token: 100, LastPrice: 24000, Volume: &volume},
	}, testMarketDate)

	price, ok := p.LastUnderlyingPrice()
	require.True(t, ok)
	assert.Equal(t, 24000.0, price)
	require.Equal(t, 1, pub.barCount())
	assert.Equal(t, int64(1_000_000), pub.bars[0].Volume)
}

func TestProcessTicksOptionRequiresKnownSpot(t *testing.T) {
	pub := &fakePublisher{}
	p := testProcessor(pub)

	p.ProcessTicks(context.Background(), "acc1", testTokenMap(), []entity.RawTick{
		{Token: 300, LastPrice: 150},
	}, testMarketDate)

	assert.Equal(t, 0, pub.snapshotCount(), "option tick without spot is skipped, not fatal")
	assert.Equal(t, int64(1), p.Stats().SkippedNoSpot)
}

func TestProcessTicksOptionEnrichment(t *testing.T) {
	pub := &fakePublisher{}
	p := testProcessor(pub)
	p.SetUnderlyingPrice(24000)

	oi := int64(150_000)
	p.ProcessTicks(context.Background(), "acc1", testTokenMap(), []entity.RawTick{
		{
			Token:     300,
			LastPrice: 150,
			OI:        &oi,
			Depth: &entity.Depth{
				Buy: []entity.DepthLevel{
					{Price: 14950, Quantity: 100, Orders: 3},
					{Price: 14900, Quantity: 250, Orders: 5},
				},
				Sell: []entity.DepthLevel{
					{Price: 15050, Quantity: 80, Orders: 2},
					{Price: 15100, Quantity: 400, Orders: 9},
				},
			},
		},
	}, testMarketDate)

	require.Equal(t, 1, pub.snapshotCount())
	snap := pub.snapshots[0]
	assert.Equal(t, int64(150_000), snap.OpenInterest)
	assert.InDelta(t, 0.5, snap.Greeks.Delta, 0.15, "near-ATM call delta")

	// Depth prices are normalized from paise to rupees.
	require.NotNil(t, snap.BestBid)
	require.NotNil(t, snap.BestAsk)
	assert.Equal(t, 149.50, snap.BestBid.Price)
	assert.Equal(t, 150.50, snap.BestAsk.Price)
	assert.Equal(t, int64(350), snap.TotalBuyQty)
	assert.Equal(t, int64(480), snap.TotalSellQty)
}

func TestProcessTicksSkipsExpiredContracts(t *testing.T) {
	pub := &fakePublisher{}
	p := testProcessor(pub)
	p.SetUnderlyingPrice(24000)

	p.ProcessTicks(context.Background(), "acc1", testTokenMap(), []entity.RawTick{
		{Token: 400, LastPrice: 10}, // expired 2025-08-28, market date 2025-09-15
	}, testMarketDate)

	assert.Equal(t, 0, pub.snapshotCount())
	assert.Equal(t, int64(1), p.Stats().SkippedExpired)
}

func TestProcessTicksSkipsUnknownTokens(t *testing.T) {
	pub := &fakePublisher{}
	p := testProcessor(pub)

	p.ProcessTicks(context.Background(), "acc1", testTokenMap(), []entity.RawTick{
		{Token: 999, LastPrice: 10},
	}, testMarketDate)

	assert.Equal(t, int64(1), p.Stats().SkippedUnknown)
}

func TestProcessTicksPublishFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{fail: true}
	p := testProcessor(pub)

	p.ProcessTicks(context.Background(), "acc1", testTokenMap(), []entity.RawTick{
		{Token: 100, LastPrice: 24000},
		{Token: 100, LastPrice: 24010},
	}, testMarketDate)

	stats := p.Stats()
	assert.Equal(t, int64(2), stats.PublishFailures)
	assert.Equal(t, int64(2), stats.UnderlyingTicks, "pipeline keeps processing after publish failures")
}

func TestProcessTicksFuturePublishesBarWithoutTouchingSpot(t *testing.T) {
	pub := &fakePublisher{}
	p := testProcessor(pub)

	p.ProcessTicks(context.Background(), "acc1", testTokenMap(), []entity.RawTick{
		{Token: 200, LastPrice: 24050},
	}, testMarketDate)

	_, ok := p.LastUnderlyingPrice()
	assert.False(t, ok, "future ticks must not update the shared underlying price")
	assert.Equal(t, 1, pub.barCount())
}

func TestProcessBarPreservesRangeAndUpdatesSpot(t *testing.T) {
	pub := &fakePublisher{}
	p := testProcessor(pub)

	inst := testTokenMap()[100]
	bar := &entity.UnderlyingBar{Token: 100, Symbol: "NIFTY 50", Open: 23990, High: 24025, Low: 23980, Close: 24010, Volume: 1_000_000}
	p.ProcessBar(context.Background(), "acc1", inst, bar, testMarketDate)

	require.Equal(t, 1, pub.barCount())
	assert.Equal(t, 24025.0, pub.bars[0].High, "pre-built bars publish whole, not collapsed to close")
	assert.Equal(t, 23980.0, pub.bars[0].Low)
	price, ok := p.LastUnderlyingPrice()
	require.True(t, ok)
	assert.Equal(t, 24010.0, price)
	assert.Equal(t, int64(1), p.Stats().UnderlyingTicks)
}

func TestProcessSnapshotPreservesDepthAndFiltersExpired(t *testing.T) {
	pub := &fakePublisher{}
	p := testProcessor(pub)

	level := entity.SnapshotLevel{Price: 149.5, Quantity: 75, Orders: 2}
	snap := &entity.OptionSnapshot{
		Token:     300,
		Kind:      entity.KindCall,
		LastPrice: 150,
		BidLevels: []entity.SnapshotLevel{level},
		AskLevels: []entity.SnapshotLevel{{Price: 150.5, Quantity: 50, Orders: 1}},
		BestBid:   &level,
	}
	p.ProcessSnapshot(context.Background(), "acc1", testTokenMap()[300], snap, testMarketDate)

	require.Equal(t, 1, pub.snapshotCount())
	require.Len(t, pub.snapshots[0].BidLevels, 1)
	assert.Equal(t, 149.5, pub.snapshots[0].BidLevels[0].Price)
	assert.Equal(t, int64(1), p.Stats().OptionTicks)

	expired := &entity.OptionSnapshot{Token: 400, Kind: entity.KindCall, LastPrice: 10}
	p.ProcessSnapshot(context.Background(), "acc1", testTokenMap()[400], expired, testMarketDate)
	assert.Equal(t, 1, pub.snapshotCount())
	assert.Equal(t, int64(1), p.Stats().SkippedExpired)
}

func TestProcessorResetState(t *testing.T) {
	pub := &fakePublisher{}
	p := testProcessor(pub)
	p.SetUnderlyingPrice(24000)
	p.ProcessTicks(context.Background(), "acc1", testTokenMap(), []entity.RawTick{
		{Token: 100, LastPrice: 24000},
	}, testMarketDate)

	p.ResetState()
	stats := p.Stats()
	_, ok := p.LastUnderlyingPrice()
	assert.False(t, ok)
	assert.Equal(t, int64(0), stats.UnderlyingTicks)
	assert.Empty(t, stats.LastTickByAccount)
}
