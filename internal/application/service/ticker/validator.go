package ticker

import (
	"fmt"
	"sync"

	entity "main/internal/domain/entity/ticker"
)

// maxValidationErrors bounds the retained error log.
const maxValidationErrors = 100

// ValidatorConfig controls tick validation behavior and sanity ceilings.
type ValidatorConfig struct {
	Enabled            bool
	Strict             bool
	MaxUnderlyingPrice float64
	MaxOptionPrice     float64
	MaxOpenInterest    int64
}

// ValidatorStats is an aggregate view of validation activity.
type ValidatorStats struct {
	Enabled    bool   `json:"enabled"`
	Strict     bool   `json:"strict"`
	Validated  int64  `json:"validated"`
	Rejected   int64  `json:"rejected"`
	ErrorCount int    `json:"error_count"`
	LastError  string `json:"last_error,omitempty"`
}

// Validator rejects malformed or implausible ticks before they reach the
// processor. Disabled means pass-through: every tick is valid.
type Validator struct {
	cfg ValidatorConfig

	mu        sync.Mutex
	validated int64
	rejected  int64
	errlog    []string
}

// NewValidator creates a validator with the given configuration.
func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{cfg: cfg}
}

// normalize coalesces upstream field-name synonyms into the canonical
// fields before any rule runs.
func normalize(t *entity.RawTick) {
	if t.Volume == nil && t.VolumeTradedToday != nil {
		t.Volume = t.VolumeTradedToday
	}
	if t.OI == nil && t.OpenInterest != nil {
		t.OI = t.OpenInterest
	}
	t.VolumeTradedToday = nil
	t.OpenInterest = nil
}

// ValidateUnderlying checks one underlying tick against the business rules.
func (v *Validator) ValidateUnderlying(t *entity.RawTick) error {
	if !v.cfg.Enabled {
		return nil
	}
	normalize(t)
	if t.Token <= 0 {
		return fmt.Errorf("underlying tick token must be positive, got %d", t.Token)
	}
	if t.LastPrice <= 0 {
		return fmt.Errorf("underlying tick price must be positive, got %f", t.LastPrice)
	}
	if t.LastPrice >= v.cfg.MaxUnderlyingPrice {
		return fmt.Errorf("underlying tick price %f exceeds ceiling %f", t.LastPrice, v.cfg.MaxUnderlyingPrice)
	}
	if t.Volume != nil && *t.Volume < 0 {
		return fmt.Errorf("underlying tick volume must be non-negative, got %d", *t.Volume)
	}
	return nil
}

// ValidateFuture checks one future tick. Unlike options, a future tracks
// the underlying and never legitimately trades at zero.
func (v *Validator) ValidateFuture(t *entity.RawTick) error {
	if !v.cfg.Enabled {
		return nil
	}
	normalize(t)
	if t.Token <= 0 {
		return fmt.Errorf("future tick token must be positive, got %d", t.Token)
	}
	if t.LastPrice <= 0 {
		return fmt.Errorf("future tick price must be positive, got %f", t.LastPrice)
	}
	if t.LastPrice >= v.cfg.MaxUnderlyingPrice {
		return fmt.Errorf("future tick price %f exceeds ceiling %f", t.LastPrice, v.cfg.MaxUnderlyingPrice)
	}
	if t.Volume != nil && *t.Volume < 0 {
		return fmt.Errorf("future tick volume must be non-negative, got %d", *t.Volume)
	}
	if t.OI != nil && *t.OI < 0 {
		return fmt.Errorf("future tick open interest must be non-negative, got %d", *t.OI)
	}
	return nil
}

// ValidateOption checks one option tick. Zero prices are allowed: deep
// out-of-the-money contracts legitimately trade at zero.
func (v *Validator) ValidateOption(t *entity.RawTick) error {
	if !v.cfg.Enabled {
		return nil
	}
	normalize(t)
	if t.Token <= 0 {
		return fmt.Errorf("option tick token must be positive, got %d", t.Token)
	}
	if t.LastPrice < 0 {
		return fmt.Errorf("option tick price must be non-negative, got %f", t.LastPrice)
	}
	if t.LastPrice >= v.cfg.MaxOptionPrice {
		return fmt.Errorf("option tick price %f exceeds ceiling %f", t.LastPrice, v.cfg.MaxOptionPrice)
	}
	if t.OI != nil {
		if *t.OI < 0 {
			return fmt.Errorf("option tick open interest must be non-negative, got %d", *t.OI)
		}
		if *t.OI >= v.cfg.MaxOpenInterest {
			return fmt.Errorf("option tick open interest %d exceeds ceiling %d", *t.OI, v.cfg.MaxOpenInterest)
		}
	}
	return nil
}

// ValidateBatch returns the ticks that pass validation, preserving input
// order. In strict mode the first violation aborts the batch with an error;
// otherwise violations are recorded and only the offending tick is dropped.
func (v *Validator) ValidateBatch(ticks []entity.RawTick, kind entity.Kind) ([]entity.RawTick, error) {
	if !v.cfg.Enabled {
		// Pass-through still coalesces field synonyms; the processor only
		// reads the canonical fields.
		for i := range ticks {
			normalize(&ticks[i])
		}
		return ticks, nil
	}
	valid := make([]entity.RawTick, 0, len(ticks))
	for i := range ticks {
		var err error
		switch kind {
		case entity.KindUnderlying:
			err = v.ValidateUnderlying(&ticks[i])
		case entity.KindFuture:
			err = v.ValidateFuture(&ticks[i])
		default:
			err = v.ValidateOption(&ticks[i])
		}
		if err != nil {
			v.recordError(err)
			if v.cfg.Strict {
				return nil, err
			}
			continue
		}
		v.recordValid()
		valid = append(valid, ticks[i])
	}
	return valid, nil
}

func (v *Validator) recordValid() {
	v.mu.Lock()
	v.validated++
	v.mu.Unlock()
}

func (v *Validator) recordError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rejected++
	if len(v.errlog) >= maxValidationErrors {
		v.errlog = v.errlog[1:]
	}
	v.errlog = append(v.errlog, err.Error())
}

// Stats returns the aggregate validation counters.
func (v *Validator) Stats() ValidatorStats {
	v.mu.Lock()
	defer v.mu.Unlock()
	stats := ValidatorStats{
		Enabled:    v.cfg.Enabled,
		Strict:     v.cfg.Strict,
		Validated:  v.validated,
		Rejected:   v.rejected,
		ErrorCount: len(v.errlog),
	}
	if len(v.errlog) > 0 {
		stats.LastError = v.errlog[len(v.errlog)-1]
	}
	return stats
}
