package query

import "math"

// recordsPerDay maps a timeframe token to its expected candle density.
// Unknown tokens fall back to 1 record per day.
var recordsPerDay = map[string]float64{
	"1M": 1.0 / 30, // 1 candle per ~30 days
	"1w": 1.0 / 7,
	"1d": 1,
	"4h": 6,
	"1h": 24,
	"15": 96,
	"5":  288,
	"1":  1440,
}

const (
	// MinWindowDays is the smallest window ever requested.
	MinWindowDays = 1
	// MaxWindowDays caps any window at 15 years of calendar days.
	MaxWindowDays = 5475
)

// windowBuffer widens the window to absorb non-trading periods and gaps.
const windowBuffer = 1.2

// KnownTimeframe reports whether tf is one of the supported timeframe tokens.
func KnownTimeframe(tf string) bool {
	_, ok := recordsPerDay[tf]
	return ok
}

// Timeframes returns the supported timeframe tokens, highest density last.
func Timeframes() []string {
	return []string{"1M", "1w", "1d", "4h", "1h", "15", "5", "1"}
}

// CalculateWindowDays converts a record count into a calendar-day window wide
// enough to contain that many candles at the timeframe's density. The result
// is always within [MinWindowDays, MaxWindowDays], so every NEIGHBORHOOD
// query stays partition-bounded regardless of input.
func CalculateWindowDays(timeframe string, recordsNeeded int) int {
	density, ok := recordsPerDay[timeframe]
	if !ok {
		density = 1
	}

	days := int(math.Ceil(float64(recordsNeeded) / density * windowBuffer))
	if days < MinWindowDays {
		return MinWindowDays
	}
	if days > MaxWindowDays {
		return MaxWindowDays
	}
	return days
}
