package ticker

import (
	"time"

	"github.com/google/uuid"
)

// Greeks holds the sensitivities and model price computed for one option
// tick. Values are recomputed on every tick, never cached.
type Greeks struct {
	Delta       float64 `json:"delta"`
	Gamma       float64 `json:"gamma"`
	ThetaAnnual float64 `json:"theta_annual"`
	ThetaDaily  float64 `json:"theta_daily"`
	Vega        float64 `json:"vega"`
	RhoAnnual   float64 `json:"rho_annual"`
	RhoPercent  float64 `json:"rho_percent"`
	Intrinsic   float64 `json:"intrinsic"`
	Extrinsic   float64 `json:"extrinsic"`
	ModelPrice  float64 `json:"model_price"`
}

// SnapshotLevel is one normalized depth level in decimal price units.
type SnapshotLevel struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	Orders   int64   `json:"orders"`
}

// OptionSnapshot is the enriched, fully-populated view of one option at one
// instant. It is a value type with no mutators; published state changes only
// by publishing a new snapshot.
type OptionSnapshot struct {
	ID           uuid.UUID       `json:"id"`
	Token        int64           `json:"token"`
	Symbol       string          `json:"symbol"`
	Underlying   string          `json:"underlying"`
	Kind         Kind            `json:"kind"`
	Strike       float64         `json:"strike"`
	Expiry       string          `json:"expiry"`
	LastPrice    float64         `json:"last_price"`
	Volume       int64           `json:"volume"`
	OpenInterest int64           `json:"open_interest"`
	IV           float64         `json:"iv"`
	Greeks       Greeks          `json:"greeks"`
	BestBid      *SnapshotLevel  `json:"best_bid,omitempty"`
	BestAsk      *SnapshotLevel  `json:"best_ask,omitempty"`
	BidLevels    []SnapshotLevel `json:"bid_levels,omitempty"`
	AskLevels    []SnapshotLevel `json:"ask_levels,omitempty"`
	TotalBuyQty  int64           `json:"total_buy_qty"`
	TotalSellQty int64           `json:"total_sell_qty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// UnderlyingSnapshot is the published view of the simulated underlying. Like
// OptionSnapshot it is complete-or-absent, never partially updated.
type UnderlyingSnapshot struct {
	Token     int64     `json:"token"`
	Symbol    string    `json:"symbol"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	LastPrice float64   `json:"last_price"`
	Volume    int64     `json:"volume"`
	UpdatedAt time.Time `json:"updated_at"`
}
