// Package query builds partition-safe parameterized SELECT statements for
// the candles table and validates that every statement it emits pins the
// partition column from both sides.
package query

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/217th/tda-bq-marketdata-exporter/internal/errors"
)

// defaultHistoryDays bounds ALL-mode queries to 15 years of history.
const defaultHistoryDays = 5475

// Param is a single named query parameter.
type Param struct {
	Name  string
	Value any
}

// BuiltQuery is the builder output: query text with @name placeholders and
// the values to bind. Caller-controlled strings and timestamps are never
// interpolated into the text; only the table identifier and integer LIMIT
// values are.
type BuiltQuery struct {
	Text   string
	Params []Param
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithClock overrides the time source used for ALL-mode bounds.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

// Builder composes the three query modes against a single candles table.
type Builder struct {
	table string
	now   func() time.Time
}

// NewBuilder creates a query builder for the given table (database.table).
func NewBuilder(table string, opts ...BuilderOption) *Builder {
	b := &Builder{table: table, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build validates the request and dispatches on its mode.
func (b *Builder) Build(req Request) (BuiltQuery, error) {
	if err := req.Validate(); err != nil {
		return BuiltQuery{}, err
	}
	switch req.Mode {
	case ModeAll:
		return b.buildAll(req)
	case ModeRange:
		return b.buildRange(req)
	case ModeNeighborhood:
		return b.buildNeighborhood(req)
	default:
		return BuiltQuery{}, apperrors.Newf(apperrors.KindValidation, "unknown query mode %q", req.Mode)
	}
}

// buildAll fetches the full 15-year history, ascending.
func (b *Builder) buildAll(req Request) (BuiltQuery, error) {
	end := b.now().UTC()
	start := end.AddDate(0, 0, -defaultHistoryDays)

	text := fmt.Sprintf(`SELECT
    timestamp, open, high, low, close, volume
FROM %s
WHERE
    symbol = @symbol
    AND timeframe = @timeframe
    AND timestamp >= @start
    AND timestamp <= @end%s
ORDER BY timestamp ASC`, b.table, exchangeClause(req.Exchange, "    "))

	params := baseParams(req)
	params = append(params,
		Param{Name: "start", Value: start},
		Param{Name: "end", Value: end},
	)
	return finish(text, params)
}

// buildRange fetches an explicit inclusive time range, ascending.
func (b *Builder) buildRange(req Request) (BuiltQuery, error) {
	if req.From.After(req.To) {
		return BuiltQuery{}, apperrors.Newf(apperrors.KindValidation,
			"invalid time range: from (%s) must not be after to (%s)",
			req.From.UTC().Format(time.RFC3339), req.To.UTC().Format(time.RFC3339)).
			WithContext("from", req.From).
			WithContext("to", req.To)
	}

	text := fmt.Sprintf(`SELECT
    timestamp, open, high, low, close, volume
FROM %s
WHERE
    symbol = @symbol
    AND timeframe = @timeframe
    AND timestamp >= @start
    AND timestamp <= @end%s
ORDER BY timestamp ASC`, b.table, exchangeClause(req.Exchange, "    "))

	params := baseParams(req)
	params = append(params,
		Param{Name: "start", Value: req.From.UTC()},
		Param{Name: "end", Value: req.To.UTC()},
	)
	return finish(text, params)
}

// buildNeighborhood fetches up to NBefore records before the center, the
// center row itself if present, and up to NAfter records after it. Each
// UNION ALL branch is individually partition-bounded by an adaptive window
// sized from the timeframe's density. The before branch scans descending so
// LIMIT keeps the rows nearest the center; the outer SELECT re-sorts the
// combined result ascending.
func (b *Builder) buildNeighborhood(req Request) (BuiltQuery, error) {
	if req.NBefore < 0 || req.NAfter < 0 {
		return BuiltQuery{}, apperrors.Newf(apperrors.KindValidation,
			"record counts must be non-negative: n_before=%d, n_after=%d", req.NBefore, req.NAfter)
	}

	n := req.NBefore
	if req.NAfter > n {
		n = req.NAfter
	}
	windowDays := CalculateWindowDays(req.Timeframe, n)

	center := req.Center.UTC()
	beforeStart := center.AddDate(0, 0, -windowDays)
	afterEnd := center.AddDate(0, 0, windowDays)

	ex := exchangeClause(req.Exchange, "          ")
	text := fmt.Sprintf(`SELECT
    timestamp, open, high, low, close, volume
FROM
(
    SELECT * FROM
    (
        SELECT timestamp, open, high, low, close, volume
        FROM %[1]s
        WHERE
          symbol = @symbol
          AND timeframe = @timeframe
          AND timestamp < @center
          AND timestamp >= @before_start%[2]s
        ORDER BY timestamp DESC
        LIMIT %[3]d
    )
    UNION ALL
    SELECT * FROM
    (
        SELECT timestamp, open, high, low, close, volume
        FROM %[1]s
        WHERE
          symbol = @symbol
          AND timeframe = @timeframe
          AND timestamp = @center%[2]s
        LIMIT 1
    )
    UNION ALL
    SELECT * FROM
    (
        SELECT timestamp, open, high, low, close, volume
        FROM %[1]s
        WHERE
          symbol = @symbol
          AND timeframe = @timeframe
          AND timestamp > @center
          AND timestamp <= @after_end%[2]s
        ORDER BY timestamp ASC
        LIMIT %[4]d
    )
)
ORDER BY timestamp ASC`, b.table, ex, req.NBefore, req.NAfter)

	params := baseParams(req)
	params = append(params,
		Param{Name: "center", Value: center},
		Param{Name: "before_start", Value: beforeStart},
		Param{Name: "after_end", Value: afterEnd},
	)
	return finish(text, params)
}

// baseParams returns the parameters common to all modes in a fixed order.
func baseParams(req Request) []Param {
	params := []Param{
		{Name: "symbol", Value: req.Symbol},
		{Name: "timeframe", Value: req.Timeframe},
	}
	if req.Exchange != "" {
		params = append(params, Param{Name: "exchange", Value: req.Exchange})
	}
	return params
}

// exchangeClause returns the optional exchange predicate. The clause text is
// fixed; the exchange value itself always travels as a bound parameter.
func exchangeClause(exchange, indent string) string {
	if exchange == "" {
		return ""
	}
	return "\n" + indent + "AND exchange = @exchange"
}

func finish(text string, params []Param) (BuiltQuery, error) {
	text = strings.TrimSpace(text)
	if err := ValidatePartitionBounds(text); err != nil {
		return BuiltQuery{}, err
	}
	return BuiltQuery{Text: text, Params: params}, nil
}
