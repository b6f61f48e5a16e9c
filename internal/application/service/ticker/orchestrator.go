package ticker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"main/internal/application/service/mockfeed"
	entity "main/internal/domain/entity/ticker"
	"main/internal/domain/interfaces"
)

var (
	ErrAlreadyRunning = errors.New("ticker orchestrator is already running")
	ErrNotRunning     = errors.New("ticker orchestrator is not running")
	ErrNoCapacity     = errors.New("no account with spare capacity")
)

// SourceMode selects where one account's ticks come from for one cycle.
type SourceMode string

const (
	SourceLive SourceMode = "live"
	SourceMock SourceMode = "mock"
)

// ModeFunc decides, per cycle, whether an account streams live or mock data.
// Market-state and session-health signals live outside the core.
type ModeFunc func(account string) SourceMode

// OrchestratorConfig carries the orchestration parameters.
type OrchestratorConfig struct {
	AccountCapacity int
	MockInterval    time.Duration
	ReadTimeout     time.Duration
	// MarketDate supplies the trading date used for expiry filtering; the
	// exchange-calendar source is an external collaborator.
	MarketDate func() time.Time
}

// Orchestrator runs one streaming task per active upstream account, owns the
// live assignment plan, and mediates all subscription changes.
type Orchestrator struct {
	cfg       OrchestratorConfig
	logger    *logrus.Entry
	sessions  interfaces.SessionFactory
	registry  interfaces.InstrumentRegistry
	store     interfaces.SubscriptionStore
	processor *Processor
	validator *Validator
	mock      *mockfeed.Generator
	bootstrap *BootstrapTracker
	mode      ModeFunc

	mu       sync.Mutex
	running  bool
	accounts []string
	plan     *Plan
	live     map[string]interfaces.UpstreamSession

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator wires the orchestrator with its collaborators. A nil mode
// function keeps every account on live data.
func NewOrchestrator(
	cfg OrchestratorConfig,
	sessions interfaces.SessionFactory,
	registry interfaces.InstrumentRegistry,
	store interfaces.SubscriptionStore,
	processor *Processor,
	validator *Validator,
	mock *mockfeed.Generator,
	mode ModeFunc,
	logger *logrus.Logger,
) *Orchestrator {
	if cfg.MarketDate == nil {
		cfg.MarketDate = time.Now
	}
	if cfg.MockInterval <= 0 {
		cfg.MockInterval = time.Second
	}
	if mode == nil {
		mode = func(string) SourceMode { return SourceLive }
	}
	return &Orchestrator{
		cfg:       cfg,
		logger:    logger.WithField("component", "ticker_orchestrator"),
		sessions:  sessions,
		registry:  registry,
		store:     store,
		processor: processor,
		validator: validator,
		mock:      mock,
		bootstrap: NewBootstrapTracker(),
		mode:      mode,
		plan:      NewPlan(),
		live:      make(map[string]interfaces.UpstreamSession),
	}
}

// Start builds the assignment plan for the desired universe and spawns one
// streaming task per account.
func (o *Orchestrator) Start(ctx context.Context, accounts []string, desired []entity.Instrument) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.running = true
	o.accounts = append([]string(nil), accounts...)
	o.plan = BuildAssignments(desired, accounts, o.cfg.AccountCapacity)
	o.mu.Unlock()

	for _, account := range accounts {
		o.wg.Add(1)
		go o.runAccount(runCtx, account)
	}

	o.logger.WithFields(logrus.Fields{
		"accounts":    len(accounts),
		"instruments": o.planSize(),
	}).Info("ticker orchestrator started")
	return nil
}

// Stop signals every streaming task and waits for them to exit.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return ErrNotRunning
	}
	o.running = false
	cancel := o.cancel
	o.mu.Unlock()

	cancel()
	o.wg.Wait()

	o.mu.Lock()
	for account, session := range o.live {
		if err := session.Close(); err != nil {
			o.logger.WithError(err).WithField("account", account).Warn("close session failed")
		}
		delete(o.live, account)
	}
	o.mu.Unlock()

	o.logger.Info("ticker orchestrator stopped")
	return nil
}

// AddInstrument incrementally subscribes one token. Before Start it only
// persists the desire. Unknown or inactive tokens and tokens already
// assigned anywhere are silent no-ops.
func (o *Orchestrator) AddInstrument(ctx context.Context, token int64, mode interfaces.SubscriptionMode) error {
	o.mu.Lock()
	running := o.running
	o.mu.Unlock()

	if !running {
		if err := o.store.UpdateAccount(ctx, token, nil); err != nil {
			return err
		}
		o.logger.WithField("token", token).Debug("subscription desire persisted while stopped")
		return nil
	}

	meta, err := o.registry.FetchMetadata(ctx, token)
	if errors.Is(err, interfaces.ErrInstrumentNotFound) {
		o.logger.WithField("token", token).Debug("skipping unknown instrument")
		return nil
	}
	if err != nil {
		return err
	}
	if meta == nil || !meta.IsActive {
		o.logger.WithField("token", token).Debug("skipping inactive instrument")
		return nil
	}

	o.mu.Lock()
	if _, owned := o.plan.Owner(token); owned {
		o.mu.Unlock()
		return nil
	}
	account, ok := FindAccountWithCapacity(o.plan, o.accounts, o.cfg.AccountCapacity)
	if !ok {
		o.mu.Unlock()
		return ErrNoCapacity
	}
	o.plan.Add(account, meta.Instrument)
	session := o.live[account]
	o.mu.Unlock()

	if err := o.store.UpdateAccount(ctx, token, &account); err != nil {
		o.logger.WithError(err).WithField("token", token).Warn("persist subscription failed")
	}
	if session != nil {
		if err := session.SubscribeTokens(ctx, []int64{token}, mode); err != nil {
			return err
		}
	}
	o.logger.WithFields(logrus.Fields{"token": token, "account": account}).Info("instrument subscribed")
	return nil
}

// RemoveInstrument incrementally unsubscribes one token. A token not
// assigned anywhere is a no-op, not an error.
func (o *Orchestrator) RemoveInstrument(ctx context.Context, token int64) error {
	o.mu.Lock()
	account, owned := o.plan.Owner(token)
	if !owned {
		o.mu.Unlock()
		return nil
	}
	o.plan.Remove(account, token)
	session := o.live[account]
	o.mu.Unlock()

	if session != nil {
		if err := session.UnsubscribeTokens(ctx, []int64{token}); err != nil {
			o.logger.WithError(err).WithField("token", token).Warn("upstream unsubscribe failed")
		}
	}
	if err := o.store.Remove(ctx, token); err != nil {
		o.logger.WithError(err).WithField("token", token).Warn("persist unsubscription failed")
	}
	o.logger.WithFields(logrus.Fields{"token": token, "account": account}).Info("instrument unsubscribed")
	return nil
}

// runAccount is one account's streaming task. A failure to establish the
// session is fatal to this task only; other accounts continue unaffected.
func (o *Orchestrator) runAccount(ctx context.Context, account string) {
	defer o.wg.Done()
	log := o.logger.WithField("account", account)

	session, err := o.sessions(ctx, account)
	if err != nil {
		log.WithError(err).Error("acquire upstream session failed, account task stopped")
		return
	}
	o.mu.Lock()
	o.live[account] = session
	assigned := o.assignedLocked(account)
	o.mu.Unlock()

	if !o.bootstrap.IsDone(account) {
		o.backfill(ctx, log, session, assigned)
		o.bootstrap.MarkDone(account)
	}

	tokens := make([]int64, 0, len(assigned))
	for _, inst := range assigned {
		tokens = append(tokens, inst.Token)
	}
	if len(tokens) > 0 {
		if err := session.SubscribeTokens(ctx, tokens, interfaces.ModeFull); err != nil {
			log.WithError(err).Warn("initial subscribe failed, continuing")
		}
	}

	mockTicker := time.NewTicker(o.cfg.MockInterval)
	defer mockTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch o.mode(account) {
		case SourceMock:
			select {
			case <-ctx.Done():
				return
			case <-mockTicker.C:
			}
			o.mockCycle(ctx, log, account, session)
		default:
			o.liveCycle(ctx, log, account, session)
		}
	}
}

// liveCycle reads one batch of raw ticks and runs it through validation and
// processing. A read timeout is not fatal: log and continue the loop.
func (o *Orchestrator) liveCycle(ctx context.Context, log *logrus.Entry, account string, session interfaces.UpstreamSession) {
	readCtx := ctx
	if o.cfg.ReadTimeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, o.cfg.ReadTimeout)
		defer cancel()
	}
	batch, err := session.ReadTicks(readCtx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.WithError(err).Warn("read ticks failed, continuing")
		return
	}
	if len(batch) == 0 {
		return
	}

	// Subscription changes mutate the plan's maps under the orchestrator
	// lock, so the cycle works on a private copy.
	tokenMap := o.tokenMap(account)

	marketDate := o.cfg.MarketDate()
	underlying, futures, options := o.splitByKind(tokenMap, batch)

	valid, err := o.validator.ValidateBatch(underlying, entity.KindUnderlying)
	if err != nil {
		log.WithError(err).Warn("underlying batch rejected")
	} else {
		o.processor.ProcessTicks(ctx, account, tokenMap, valid, marketDate)
	}
	valid, err = o.validator.ValidateBatch(futures, entity.KindFuture)
	if err != nil {
		log.WithError(err).Warn("future batch rejected")
	} else {
		o.processor.ProcessTicks(ctx, account, tokenMap, valid, marketDate)
	}
	valid, err = o.validator.ValidateBatch(options, entity.KindCall)
	if err != nil {
		log.WithError(err).Warn("option batch rejected")
	} else {
		o.processor.ProcessTicks(ctx, account, tokenMap, valid, marketDate)
	}
}

// mockCycle synthesizes one bar for the underlying and one snapshot per
// mocked option, re-seeding the generator on first entry. Generator output
// goes to the processor whole, so mock records carry the same OHLC range
// and depth ladder live records do.
func (o *Orchestrator) mockCycle(ctx context.Context, log *logrus.Entry, account string, session interfaces.UpstreamSession) {
	o.mu.Lock()
	assigned := o.assignedLocked(account)
	o.mu.Unlock()

	if err := o.mock.EnsureUnderlyingSeeded(ctx, session); err != nil {
		log.WithError(err).Warn("seed mock underlying failed, retrying next cycle")
		return
	}
	if err := o.mock.EnsureOptionsSeeded(ctx, session, assigned); err != nil {
		log.WithError(err).Warn("seed mock options failed")
	}

	marketDate := o.cfg.MarketDate()
	for _, inst := range assigned {
		if ctx.Err() != nil {
			return
		}
		switch {
		case inst.Kind == entity.KindUnderlying:
			bar, err := o.mock.GenerateUnderlyingBar(ctx)
			if err != nil {
				log.WithError(err).Warn("generate mock bar failed")
				continue
			}
			o.processor.ProcessBar(ctx, account, inst, bar, marketDate)
		case inst.IsOption():
			snap, err := o.mock.GenerateOptionSnapshot(ctx, inst)
			if err != nil {
				log.WithError(err).WithField("token", inst.Token).Warn("generate mock snapshot failed")
				continue
			}
			o.processor.ProcessSnapshot(ctx, account, inst, snap, marketDate)
		}
	}
}

// backfill runs the one-time historical catch-up for the account's assigned
// derivatives before live ticks are trusted. Transient fetch errors are
// logged and skipped.
func (o *Orchestrator) backfill(ctx context.Context, log *logrus.Entry, session interfaces.UpstreamSession, assigned []entity.Instrument) {
	from := o.cfg.MarketDate().Add(-24 * time.Hour)
	to := o.cfg.MarketDate()
	for _, inst := range assigned {
		if ctx.Err() != nil {
			return
		}
		if !inst.IsDerivative() {
			continue
		}
		if _, err := session.FetchHistorical(ctx, inst.Token, "minute", from, to, inst.IsOption()); err != nil {
			log.WithError(err).WithField("token", inst.Token).Warn("backfill fetch failed, skipping")
		}
	}
	log.WithField("instruments", len(assigned)).Info("historical bootstrap complete")
}

// splitByKind partitions a batch by instrument kind so each group runs
// through its own validation rules. Unknown tokens go with the options: the
// zero-tolerant rules keep them flowing to the processor, which counts and
// drops them.
func (o *Orchestrator) splitByKind(tokenMap map[int64]entity.Instrument, batch []entity.RawTick) (underlying, futures, options []entity.RawTick) {
	for _, tick := range batch {
		switch inst, ok := tokenMap[tick.Token]; {
		case ok && inst.Kind == entity.KindUnderlying:
			underlying = append(underlying, tick)
		case ok && inst.Kind == entity.KindFuture:
			futures = append(futures, tick)
		default:
			options = append(options, tick)
		}
	}
	return underlying, futures, options
}

func (o *Orchestrator) assignedLocked(account string) []entity.Instrument {
	assigned := o.plan.Assignments[account]
	out := make([]entity.Instrument, len(assigned))
	copy(out, assigned)
	return out
}

func (o *Orchestrator) tokenMap(account string) map[int64]entity.Instrument {
	o.mu.Lock()
	defer o.mu.Unlock()
	src := o.plan.TokenMaps[account]
	out := make(map[int64]entity.Instrument, len(src))
	for token, inst := range src {
		out[token] = inst
	}
	return out
}

func (o *Orchestrator) planSize() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.plan.Size()
}

// Bootstrap exposes the bootstrap tracker for supervision and tests.
func (o *Orchestrator) Bootstrap() *BootstrapTracker {
	return o.bootstrap
}

// Stats aggregates the observable state of the pipeline.
type Stats struct {
	Running     bool           `json:"running"`
	Accounts    int            `json:"accounts"`
	Assigned    int            `json:"assigned"`
	MockedState int            `json:"mocked_options"`
	Processor   ProcessorStats `json:"processor"`
	Validator   ValidatorStats `json:"validator"`
}

// Stats returns a consistent view of orchestration state.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	running := o.running
	accounts := len(o.accounts)
	assigned := o.plan.Size()
	o.mu.Unlock()
	return Stats{
		Running:     running,
		Accounts:    accounts,
		Assigned:    assigned,
		MockedState: o.mock.StateSize(),
		Processor:   o.processor.Stats(),
		Validator:   o.validator.Stats(),
	}
}
