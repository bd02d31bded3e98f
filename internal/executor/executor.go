// Package executor wraps a single query run in bounded exponential backoff.
// It retries only failures the classifier marks retryable; everything else
// propagates on first occurrence.
package executor

import (
	"context"
	"math"
	"time"

	"github.com/217th/tda-bq-marketdata-exporter/internal/domain/models"
	apperrors "github.com/217th/tda-bq-marketdata-exporter/internal/errors"
	"github.com/217th/tda-bq-marketdata-exporter/internal/query"
	applogger "github.com/217th/tda-bq-marketdata-exporter/pkg/logger"
)

// Policy is the backoff tuple governing retry spacing.
type Policy struct {
	BaseDelay   time.Duration
	Factor      float64
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultPolicy returns the standard backoff: 1s base, doubling, capped at
// 32s, 5 attempts (delays 1s, 2s, 4s, 8s; no sleep after the last attempt).
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   1 * time.Second,
		Factor:      2.0,
		MaxDelay:    32 * time.Second,
		MaxAttempts: 5,
	}
}

// RunFunc performs one query attempt. The executor owns nothing the run
// function touches; the connection handle stays with the caller.
type RunFunc func(ctx context.Context, q query.BuiltQuery) ([]models.Candle, error)

// Executor executes a built query with classified retries. One query is
// in flight per call; the only blocking operation is the backoff sleep.
type Executor struct {
	policy Policy
	l      *applogger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates an executor, normalizing out-of-range policy fields.
func New(policy Policy, l *applogger.Logger) *Executor {
	def := DefaultPolicy()
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = def.BaseDelay
	}
	if policy.Factor <= 1.0 {
		policy.Factor = def.Factor
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = def.MaxDelay
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = def.MaxAttempts
	}
	return &Executor{
		policy: policy,
		l:      l,
		sleep:  sleepCtx,
	}
}

// Execute runs the query via run, retrying retryable failures until the
// attempt budget is spent. The returned error is always classified.
func (e *Executor) Execute(ctx context.Context, built query.BuiltQuery, qctx apperrors.QueryContext, run RunFunc) ([]models.Candle, error) {
	qctx.Query = built.Text

	var classified *apperrors.ClassifiedError
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		rows, err := run(ctx, built)
		if err == nil {
			if attempt > 1 {
				e.l.Info("query succeeded after retry",
					applogger.Int("attempt", attempt),
					applogger.Int("rows", len(rows)),
				)
			}
			return rows, nil
		}

		classified = apperrors.Classify(err, qctx)
		classified.WithContext("attempt", attempt)

		if !classified.Retryable {
			e.l.Error("query failed with non-retryable error",
				applogger.String("kind", string(classified.Kind)),
				applogger.Int("attempt", attempt),
				applogger.Error(classified),
			)
			return nil, classified
		}
		if attempt == e.policy.MaxAttempts {
			break
		}

		delay := e.delay(attempt)
		e.l.Warn("retryable query failure, backing off",
			applogger.String("kind", string(classified.Kind)),
			applogger.Int("attempt", attempt),
			applogger.Duration("delay_ms", delay),
			applogger.Error(classified),
		)
		if err := e.sleep(ctx, delay); err != nil {
			return nil, apperrors.Classify(err, qctx)
		}
	}

	e.l.Error("query failed after all attempts",
		applogger.String("kind", string(classified.Kind)),
		applogger.Int("attempts", e.policy.MaxAttempts),
		applogger.Error(classified),
	)
	return nil, classified
}

// delay computes min(base * factor^(attempt-1), max).
func (e *Executor) delay(attempt int) time.Duration {
	d := float64(e.policy.BaseDelay) * math.Pow(e.policy.Factor, float64(attempt-1))
	if d > float64(e.policy.MaxDelay) {
		d = float64(e.policy.MaxDelay)
	}
	return time.Duration(d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
