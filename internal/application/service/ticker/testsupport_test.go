package ticker

import (
	"context"
	"errors"
	"sync"
	"time"

	entity "main/internal/domain/entity/ticker"
	"main/internal/domain/interfaces"
)

// fakePublisher captures published records and can be told to fail.
type fakePublisher struct {
	mu        sync.Mutex
	bars      []entity.UnderlyingBar
	snapshots []entity.OptionSnapshot
	fail      bool
}

func (f *fakePublisher) PublishUnderlyingBar(_ context.Context, bar *entity.UnderlyingBar) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("publish failed")
	}
	f.bars = append(f.bars, *bar)
	return nil
}

func (f *fakePublisher) PublishOptionSnapshot(_ context.Context, snap *entity.OptionSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("publish failed")
	}
	f.snapshots = append(f.snapshots, *snap)
	return nil
}

func (f *fakePublisher) barCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bars)
}

func (f *fakePublisher) snapshotCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots)
}

// fakeSession counts upstream calls and serves canned ticks. With loopTicks
// set the canned batch is served on every read instead of draining once.
type fakeSession struct {
	mu            sync.Mutex
	subscribes    [][]int64
	unsubscribes  [][]int64
	ticks         []entity.RawTick
	loopTicks     bool
	failSubscribe bool
}

func (f *fakeSession) GetQuote(context.Context, []string) (map[string]interfaces.Quote, error) {
	return map[string]interfaces.Quote{}, nil
}

func (f *fakeSession) FetchHistorical(context.Context, int64, string, time.Time, time.Time, bool) ([]interfaces.HistoricalBar, error) {
	return nil, nil
}

func (f *fakeSession) GetLastPrice(context.Context, int64) (float64, error) {
	return 0, nil
}

func (f *fakeSession) SubscribeTokens(_ context.Context, tokens []int64, _ interfaces.SubscriptionMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSubscribe {
		return errors.New("subscribe failed")
	}
	f.subscribes = append(f.subscribes, tokens)
	return nil
}

func (f *fakeSession) UnsubscribeTokens(_ context.Context, tokens []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribes = append(f.unsubscribes, tokens)
	return nil
}

func (f *fakeSession) ReadTicks(ctx context.Context) ([]entity.RawTick, error) {
	f.mu.Lock()
	if len(f.ticks) > 0 {
		batch := append([]entity.RawTick(nil), f.ticks...)
		if !f.loopTicks {
			f.ticks = nil
		}
		f.mu.Unlock()
		return batch, nil
	}
	f.mu.Unlock()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, nil
	}
}

func (f *fakeSession) Close() error { return nil }

func (f *fakeSession) subscribeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribes)
}

func (f *fakeSession) unsubscribeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.unsubscribes)
}

// fakeRegistry resolves tokens from a static metadata map.
type fakeRegistry struct {
	metadata map[int64]*interfaces.InstrumentMetadata
}

func (f *fakeRegistry) FetchMetadata(_ context.Context, token int64) (*interfaces.InstrumentMetadata, error) {
	meta, ok := f.metadata[token]
	if !ok {
		return nil, interfaces.ErrInstrumentNotFound
	}
	return meta, nil
}

// fakeStore records desired-state writes.
type fakeStore struct {
	mu      sync.Mutex
	updates map[int64]*string
}

func newFakeStore() *fakeStore {
	return &fakeStore{updates: make(map[int64]*string)}
}

func (f *fakeStore) UpdateAccount(_ context.Context, token int64, account *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[token] = account
	return nil
}

func (f *fakeStore) Remove(_ context.Context, token int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.updates, token)
	return nil
}

func (f *fakeStore) ListDesired(context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tokens := make([]int64, 0, len(f.updates))
	for token := range f.updates {
		tokens = append(tokens, token)
	}
	return tokens, nil
}

func int64Ptr(v int64) *int64 { return &v }
