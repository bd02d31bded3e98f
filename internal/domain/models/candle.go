package models

import "time"

// Candle represents a single OHLCV record read from the candles table.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}
