package ticker

import (
	"time"
)

// Kind classifies an instrument within the streamed universe.
type Kind string

const (
	KindUnderlying Kind = "underlying"
	KindFuture     Kind = "future"
	KindCall       Kind = "call"
	KindPut        Kind = "put"
)

func (k Kind) String() string {
	return string(k)
}

func (k Kind) IsValid() bool {
	switch k {
	case KindUnderlying, KindFuture, KindCall, KindPut:
		return true
	default:
		return false
	}
}

// expiryLayout is the date format instrument dumps carry for derivatives.
const expiryLayout = "2006-01-02"

// Instrument is an immutable description of one tradable contract.
// Identity is the token; every other field is descriptive.
type Instrument struct {
	Token         int64   `json:"token"`
	TradingSymbol string  `json:"trading_symbol"`
	Underlying    string  `json:"underlying"`
	Kind          Kind    `json:"kind"`
	Strike        float64 `json:"strike,omitempty"`
	Expiry        string  `json:"expiry,omitempty"`
	Exchange      string  `json:"exchange"`
	Segment       string  `json:"segment"`
	TickSize      float64 `json:"tick_size"`
	LotSize       int64   `json:"lot_size"`
}

// IsOption reports whether the instrument is a call or a put.
func (i Instrument) IsOption() bool {
	return i.Kind == KindCall || i.Kind == KindPut
}

// IsDerivative reports whether the instrument carries an expiry.
func (i Instrument) IsDerivative() bool {
	return i.Kind == KindFuture || i.IsOption()
}

// ExpiryTime parses the expiry date. Underlyings and perpetual contracts
// have no expiry and return ok=false.
func (i Instrument) ExpiryTime() (time.Time, bool) {
	if i.Expiry == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(expiryLayout, i.Expiry)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ExpiredBefore reports whether the contract expired strictly before the
// given market date. Instruments with an absent or unparseable expiry are
// never treated as expired.
func (i Instrument) ExpiredBefore(marketDate time.Time) bool {
	expiry, ok := i.ExpiryTime()
	if !ok {
		return false
	}
	day := time.Date(marketDate.Year(), marketDate.Month(), marketDate.Day(), 0, 0, 0, 0, marketDate.Location())
	return expiry.Before(day)
}

// YearsToExpiry returns the time to expiry in years from the given market
// date, floored at zero.
func (i Instrument) YearsToExpiry(marketDate time.Time) float64 {
	expiry, ok := i.ExpiryTime()
	if !ok {
		return 0
	}
	years := expiry.Sub(marketDate).Hours() / 24 / 365
	if years < 0 {
		return 0
	}
	return years
}
