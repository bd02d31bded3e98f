package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/217th/tda-bq-marketdata-exporter/internal/domain/models"
	"github.com/217th/tda-bq-marketdata-exporter/internal/query"
	pkgch "github.com/217th/tda-bq-marketdata-exporter/pkg/clickhouse"
	applogger "github.com/217th/tda-bq-marketdata-exporter/pkg/logger"
)

// CandleRepository runs built queries against ClickHouse and scans the
// result into candle rows. Errors are returned raw; classification happens
// in the executor.
type CandleRepository struct {
	client *pkgch.Client
	l      *applogger.Logger
}

func NewCandleRepository(client *pkgch.Client, l *applogger.Logger) *CandleRepository {
	return &CandleRepository{client: client, l: l}
}

// Query executes one built query and returns rows ordered as the query
// orders them (ascending by timestamp for every mode).
func (r *CandleRepository) Query(ctx context.Context, q query.BuiltQuery) ([]models.Candle, error) {
	start := time.Now()

	args := make([]any, 0, len(q.Params))
	for _, p := range q.Params {
		args = append(args, clickhouse.Named(p.Name, p.Value))
	}

	rows, err := r.client.Conn().Query(ctx, q.Text, args...)
	if err != nil {
		r.l.Error("clickhouse query error",
			applogger.Int("query_length", len(q.Text)),
			applogger.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 1024)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			r.l.Error("clickhouse scan error", applogger.Error(err))
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		r.l.Error("clickhouse rows error", applogger.Error(err))
		return nil, fmt.Errorf("rows: %w", err)
	}

	r.l.Info("clickhouse query ok",
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}
