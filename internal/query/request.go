package query

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/217th/tda-bq-marketdata-exporter/internal/errors"
)

// Mode selects which builder method runs.
type Mode string

const (
	ModeAll          Mode = "ALL"
	ModeRange        Mode = "RANGE"
	ModeNeighborhood Mode = "NEIGHBORHOOD"
)

// Request is the immutable input to the query builder: one value per
// invocation, never mutated after construction.
type Request struct {
	Symbol    string `validate:"required,symbol"`
	Timeframe string `validate:"required,timeframe"`
	Exchange  string `validate:"omitempty,symbol"`
	Mode      Mode   `validate:"required,oneof=ALL RANGE NEIGHBORHOOD"`

	// RANGE
	From time.Time
	To   time.Time

	// NEIGHBORHOOD
	Center  time.Time
	NBefore int `validate:"gte=0"`
	NAfter  int `validate:"gte=0"`
}

var symbolRe = regexp.MustCompile(`^[A-Z0-9]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// exchange-pair style identifiers, e.g. BTCUSDT or BINANCE
	_ = v.RegisterValidation("symbol", func(fl validator.FieldLevel) bool {
		return symbolRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("timeframe", func(fl validator.FieldLevel) bool {
		return KnownTimeframe(fl.Field().String())
	})
	return v
}

// Validate checks the request fields shared by all modes. Mode-specific
// bounds (from <= to, counts) are checked by the respective builder method.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return apperrors.Wrap(apperrors.KindValidation, "invalid request", err)
		}
		fe := ve[0]
		return apperrors.Newf(apperrors.KindValidation, "invalid request: field %s failed %q validation", fe.Field(), fe.Tag()).
			WithContext("field", fe.Field()).
			WithContext("value", fe.Value())
	}
	return nil
}
