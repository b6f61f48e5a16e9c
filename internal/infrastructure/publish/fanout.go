package publish

import (
	"context"
	"errors"

	entity "main/internal/domain/entity/ticker"
	"main/internal/domain/interfaces"
)

// Fanout forwards every published record to all configured sinks. Each sink
// is attempted even when an earlier one fails; errors are joined for the
// caller to log.
type Fanout struct {
	sinks []interfaces.MarketPublisher
}

var _ interfaces.MarketPublisher = (*Fanout)(nil)

// NewFanout builds a composite publisher over the given sinks.
func NewFanout(sinks ...interfaces.MarketPublisher) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) PublishUnderlyingBar(ctx context.Context, bar *entity.UnderlyingBar) error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.PublishUnderlyingBar(ctx, bar); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) PublishOptionSnapshot(ctx context.Context, snapshot *entity.OptionSnapshot) error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.PublishOptionSnapshot(ctx, snapshot); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
