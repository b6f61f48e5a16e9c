package ticker

import (
	"time"

	"github.com/google/uuid"
)

// UnderlyingBar is one published OHLCV record for the underlying index or a
// future contract.
type UnderlyingBar struct {
	ID        uuid.UUID `json:"id"`
	Token     int64     `json:"token"`
	Symbol    string    `json:"symbol"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}
