package models

import (
	"time"

	entity "main/internal/domain/entity/ticker"

	"gorm.io/gorm"
)

// InstrumentModel mirrors the instruments table loaded from the daily
// contract dump.
type InstrumentModel struct {
	Token         int64          `gorm:"primaryKey;column:instrument_token;type:bigint;not null"`
	TradingSymbol string         `gorm:"column:trading_symbol;type:varchar(64);not null;index"`
	Underlying    string         `gorm:"column:underlying;type:varchar(32);not null;index"`
	Kind          string         `gorm:"column:kind;type:varchar(16);not null"`
	Strike        float64        `gorm:"column:strike;type:numeric(12,2)"`
	Expiry        string         `gorm:"column:expiry;type:varchar(10)"`
	Exchange      string         `gorm:"column:exchange;type:varchar(16);not null"`
	Segment       string         `gorm:"column:segment;type:varchar(16);not null"`
	TickSize      float64        `gorm:"column:tick_size;type:numeric(8,4)"`
	LotSize       int64          `gorm:"column:lot_size;type:integer"`
	IsActive      bool           `gorm:"column:is_active;type:boolean;not null;default:true"`
	CreatedAt     time.Time      `gorm:"column:created_at;type:timestamp;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;type:timestamp;default:CURRENT_TIMESTAMP"`
	DeletedAt     gorm.DeletedAt `gorm:"column:deleted_at;type:timestamp;index"`
}

func (InstrumentModel) TableName() string {
	return "instruments"
}

// ToEntity converts the stored row into the domain instrument.
func (m *InstrumentModel) ToEntity() entity.Instrument {
	return entity.Instrument{
		Token:         m.Token,
		TradingSymbol: m.TradingSymbol,
		Underlying:    m.Underlying,
		Kind:          entity.Kind(m.Kind),
		Strike:        m.Strike,
		Expiry:        m.Expiry,
		Exchange:      m.Exchange,
		Segment:       m.Segment,
		TickSize:      m.TickSize,
		LotSize:       m.LotSize,
	}
}
