package query

import (
	"regexp"
	"strings"

	apperrors "github.com/217th/tda-bq-marketdata-exporter/internal/errors"
)

// The candles table is partitioned by toDate(timestamp); a query that does
// not pin both sides of the partition column scans every partition. The
// builder always emits both bounds, this check exists so a future change to
// any branch cannot regress partition pruning silently.
var (
	lowerBoundRe = regexp.MustCompile(`\btimestamp\s*>=`)
	upperBoundRe = regexp.MustCompile(`\btimestamp\s*<=`)
)

// ValidatePartitionBounds fails unless the composed query text carries both
// a lower and an upper bound on the partition timestamp column. It runs on
// the final text, including every UNION ALL branch, never on fragments.
func ValidatePartitionBounds(text string) error {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))

	if !lowerBoundRe.MatchString(normalized) {
		return apperrors.New(apperrors.KindValidation,
			"query lacks a lower bound on the partition column; every query must constrain timestamp from both sides").
			WithContext("missing", "timestamp >=")
	}
	if !upperBoundRe.MatchString(normalized) {
		return apperrors.New(apperrors.KindValidation,
			"query lacks an upper bound on the partition column; every query must constrain timestamp from both sides").
			WithContext("missing", "timestamp <=")
	}
	return nil
}
