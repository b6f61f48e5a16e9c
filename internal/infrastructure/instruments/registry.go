package instruments

import (
	"context"
	"errors"
	"fmt"
	"time"

	entity "main/internal/domain/entity/ticker"
	"main/internal/domain/interfaces"
	"main/internal/infrastructure/instruments/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInstrumentNotFound aliases the port-level sentinel so callers of the
// registry can match it without importing the interfaces package.
var ErrInstrumentNotFound = interfaces.ErrInstrumentNotFound

var _ interfaces.InstrumentRegistry = (*Registry)(nil)

const instrumentColumns = `instrument_token, trading_symbol, underlying, kind, strike, expiry, exchange, segment, tick_size, lot_size, is_active`

// Registry resolves instrument tokens against the instruments table.
type Registry struct {
	pool *pgxpool.Pool
}

func NewRegistry(ctx context.Context, dsn string) (*Registry, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Registry{pool: pool}, nil
}

func NewRegistryWithPool(pool *pgxpool.Pool) *Registry {
	return &Registry{pool: pool}
}

func (r *Registry) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// FetchMetadata looks up one token. Soft-deleted rows are treated as
// missing so restarts never resubscribe retired contracts.
func (r *Registry) FetchMetadata(ctx context.Context, token int64) (*interfaces.InstrumentMetadata, error) {
	query := `
		SELECT ` + instrumentColumns + `
		FROM instruments
		WHERE instrument_token = $1 AND deleted_at IS NULL`

	row := r.pool.QueryRow(ctx, query, token)
	model := &models.InstrumentModel{}
	if err := scanInstrumentInto(row, model); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInstrumentNotFound
		}
		return nil, err
	}
	return &interfaces.InstrumentMetadata{
		Instrument: model.ToEntity(),
		IsActive:   model.IsActive,
	}, nil
}

// FetchActiveInstruments resolves a batch of tokens to their active
// instruments. Tokens that are missing, inactive, or soft-deleted are
// silently omitted from the result.
func (r *Registry) FetchActiveInstruments(ctx context.Context, tokens []int64) ([]entity.Instrument, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	query := `
		SELECT ` + instrumentColumns + `
		FROM instruments
		WHERE instrument_token = ANY($1) AND is_active AND deleted_at IS NULL`

	rows, err := r.pool.Query(ctx, query, tokens)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]entity.Instrument, 0, len(tokens))
	for rows.Next() {
		model := &models.InstrumentModel{}
		if err := scanInstrumentInto(rows, model); err != nil {
			return nil, err
		}
		out = append(out, model.ToEntity())
	}
	return out, rows.Err()
}

// UpsertInstrument writes one contract from the daily dump, reviving a
// previously soft-deleted row if the token reappears.
func (r *Registry) UpsertInstrument(ctx context.Context, instrument entity.Instrument, isActive bool) error {
	const query = `
		INSERT INTO instruments (instrument_token, trading_symbol, underlying, kind, strike, expiry, exchange, segment, tick_size, lot_size, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)
		ON CONFLICT (instrument_token) DO UPDATE
		SET trading_symbol=EXCLUDED.trading_symbol,
			underlying=EXCLUDED.underlying,
			kind=EXCLUDED.kind,
			strike=EXCLUDED.strike,
			expiry=EXCLUDED.expiry,
			exchange=EXCLUDED.exchange,
			segment=EXCLUDED.segment,
			tick_size=EXCLUDED.tick_size,
			lot_size=EXCLUDED.lot_size,
			is_active=EXCLUDED.is_active,
			updated_at=EXCLUDED.updated_at,
			deleted_at=NULL`

	_, err := r.pool.Exec(ctx, query,
		instrument.Token,
		instrument.TradingSymbol,
		instrument.Underlying,
		string(instrument.Kind),
		instrument.Strike,
		instrument.Expiry,
		instrument.Exchange,
		instrument.Segment,
		instrument.TickSize,
		instrument.LotSize,
		isActive,
		time.Now().UTC(),
	)
	return err
}

func scanInstrumentInto(row pgx.Row, model *models.InstrumentModel) error {
	return row.Scan(
		&model.Token,
		&model.TradingSymbol,
		&model.Underlying,
		&model.Kind,
		&model.Strike,
		&model.Expiry,
		&model.Exchange,
		&model.Segment,
		&model.TickSize,
		&model.LotSize,
		&model.IsActive,
	)
}
