package ticker

import "time"

// DepthLevel holds one side level of the order book as received from the
// feed. Prices are fixed-point paise; the processor normalizes them to
// rupees before publishing.
type DepthLevel struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
	Orders   int64 `json:"orders"`
}

// Depth carries the best levels of both sides of the book for one tick.
type Depth struct {
	Buy  []DepthLevel `json:"buy"`
	Sell []DepthLevel `json:"sell"`
}

// RawTick is one transient price update from an upstream feed or the mock
// generator. Different upstream payload shapes name the volume and open
// interest fields differently; both spellings are kept so the validator can
// coalesce them before rule evaluation.
type RawTick struct {
	Token     int64      `json:"token"`
	LastPrice float64    `json:"last_price"`
	Volume    *int64     `json:"volume,omitempty"`
	OI        *int64     `json:"oi,omitempty"`
	Depth     *Depth     `json:"depth,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`

	// Upstream synonyms, normalized away by the validator.
	VolumeTradedToday *int64 `json:"volume_traded_today,omitempty"`
	OpenInterest      *int64 `json:"open_interest,omitempty"`
}
