package upstream

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	entity "main/internal/domain/entity/ticker"
	"main/internal/domain/interfaces"
)

// OfflineSession stands in for a broker session when no live feed is
// configured. It accepts subscription changes, carries no market data, and
// never yields ticks, leaving every streaming cycle to the simulator.
// Data lookups return empty results rather than errors so simulation state
// seeds from the configured baselines.
type OfflineSession struct {
	account string
	logger  *logrus.Entry
}

var _ interfaces.UpstreamSession = (*OfflineSession)(nil)

// NewOfflineFactory returns a session factory producing offline sessions.
func NewOfflineFactory(logger *logrus.Logger) interfaces.SessionFactory {
	return func(_ context.Context, account string) (interfaces.UpstreamSession, error) {
		return &OfflineSession{
			account: account,
			logger:  logger.WithFields(logrus.Fields{"component": "offline_session", "account": account}),
		}, nil
	}
}

func (s *OfflineSession) GetQuote(context.Context, []string) (map[string]interfaces.Quote, error) {
	return map[string]interfaces.Quote{}, nil
}

func (s *OfflineSession) FetchHistorical(context.Context, int64, string, time.Time, time.Time, bool) ([]interfaces.HistoricalBar, error) {
	return nil, nil
}

func (s *OfflineSession) GetLastPrice(context.Context, int64) (float64, error) {
	return 0, nil
}

func (s *OfflineSession) SubscribeTokens(_ context.Context, tokens []int64, mode interfaces.SubscriptionMode) error {
	s.logger.WithFields(logrus.Fields{"tokens": len(tokens), "mode": mode}).Debug("offline subscribe accepted")
	return nil
}

func (s *OfflineSession) UnsubscribeTokens(_ context.Context, tokens []int64) error {
	s.logger.WithField("tokens", len(tokens)).Debug("offline unsubscribe accepted")
	return nil
}

// ReadTicks waits out the read deadline and reports no data.
func (s *OfflineSession) ReadTicks(ctx context.Context) ([]entity.RawTick, error) {
	<-ctx.Done()
	return nil, nil
}

func (s *OfflineSession) Close() error {
	return nil
}
