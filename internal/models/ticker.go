package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ticker represents a snapshot price record for one instrument
type Ticker struct {
	InstType  string          `json:"inst_type"`
	InstID    string          `json:"inst_id"`
	LastPrice decimal.Decimal `json:"last_price"`
	BidPrice  decimal.Decimal `json:"bid_price"`
	AskPrice  decimal.Decimal `json:"ask_price"`
	Timestamp time.Time       `json:"timestamp"`
}
