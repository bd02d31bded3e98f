package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/217th/tda-bq-marketdata-exporter/internal/domain/models"
	apperrors "github.com/217th/tda-bq-marketdata-exporter/internal/errors"
	"github.com/217th/tda-bq-marketdata-exporter/internal/executor"
	"github.com/217th/tda-bq-marketdata-exporter/internal/query"
	applogger "github.com/217th/tda-bq-marketdata-exporter/pkg/logger"
)

type fakeRepo struct {
	candles []models.Candle
	err     error
	queries []query.BuiltQuery
}

func (f *fakeRepo) Query(ctx context.Context, q query.BuiltQuery) ([]models.Candle, error) {
	f.queries = append(f.queries, q)
	return f.candles, f.err
}

func newTestExtractor(repo *fakeRepo) *Extractor {
	e := NewExtractor(
		query.NewBuilder("marketdata.candles"),
		repo,
		executor.New(executor.Policy{BaseDelay: time.Nanosecond, Factor: 2, MaxDelay: time.Nanosecond, MaxAttempts: 2}, applogger.Nop()),
		applogger.Nop(),
	)
	e.now = func() time.Time { return time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC) }
	return e
}

func sampleCandles(n int) []models.Candle {
	base := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, 0, n)
	for i := 0; i < n; i++ {
		candles = append(candles, models.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      float64(i), High: float64(i) + 1, Low: float64(i) - 1, Close: float64(i), Volume: 100,
		})
	}
	return candles
}

func TestExtractRange(t *testing.T) {
	repo := &fakeRepo{candles: sampleCandles(3)}
	e := newTestExtractor(repo)

	res, err := e.Extract(context.Background(), "req-1", query.Request{
		Symbol: "BTCUSDT", Timeframe: "1h", Mode: query.ModeRange,
		From: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, repo.queries, 1)

	assert.Len(t, res.Candles, 3)
	assert.Len(t, res.Document.Data, 3)

	meta := res.Document.Metadata
	assert.Equal(t, "req-1", meta.RequestID)
	assert.Equal(t, "2024-06-01T09:30:00Z", meta.RequestTimestamp)
	assert.Equal(t, "BTCUSDT", meta.Symbol)
	assert.Equal(t, "1h", meta.Timeframe)
	assert.Equal(t, "range", meta.QueryType)
	assert.Equal(t, "2024-03-01T00:00:00Z", meta.QueryParameters["from_timestamp"])
	assert.Equal(t, "2024-04-01T00:00:00Z", meta.QueryParameters["to_timestamp"])
}

func TestExtractNeighborhoodMetadata(t *testing.T) {
	repo := &fakeRepo{candles: sampleCandles(5)}
	e := newTestExtractor(repo)

	res, err := e.Extract(context.Background(), "req-2", query.Request{
		Symbol: "ETHUSDT", Timeframe: "1h", Exchange: "BINANCE", Mode: query.ModeNeighborhood,
		Center: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), NBefore: 2, NAfter: 2,
	})
	require.NoError(t, err)

	meta := res.Document.Metadata
	assert.Equal(t, "neighborhood", meta.QueryType)
	assert.Equal(t, "2024-03-15T12:00:00Z", meta.QueryParameters["center_timestamp"])
	assert.Equal(t, 2, meta.QueryParameters["n_before"])
	assert.Equal(t, 2, meta.QueryParameters["n_after"])
	assert.Equal(t, "BINANCE", meta.QueryParameters["exchange"])
}

func TestExtractNeighborhoodAcceptsPartialResult(t *testing.T) {
	// requested 2+2+1 rows, only 3 exist near the center
	repo := &fakeRepo{candles: sampleCandles(3)}
	e := newTestExtractor(repo)

	res, err := e.Extract(context.Background(), "req-3", query.Request{
		Symbol: "BTCUSDT", Timeframe: "1h", Mode: query.ModeNeighborhood,
		Center: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), NBefore: 2, NAfter: 2,
	})
	require.NoError(t, err)
	assert.Len(t, res.Candles, 3)
}

func TestExtractNoData(t *testing.T) {
	repo := &fakeRepo{candles: nil}
	e := newTestExtractor(repo)

	res, err := e.Extract(context.Background(), "req-4", query.Request{
		Symbol: "BTCUSDT", Timeframe: "1d", Mode: query.ModeAll,
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, apperrors.KindNoData, apperrors.KindOf(err))
	assert.Equal(t, 0, apperrors.ExitCode(err))
}

func TestExtractInvalidRequest(t *testing.T) {
	repo := &fakeRepo{}
	e := newTestExtractor(repo)

	_, err := e.Extract(context.Background(), "req-5", query.Request{
		Symbol: "btc", Timeframe: "1h", Mode: query.ModeAll,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Empty(t, repo.queries, "invalid requests must never reach the repository")
}

func TestExtractPropagatesQueryFailure(t *testing.T) {
	repo := &fakeRepo{err: apperrors.New(apperrors.KindAuthentication, "access denied")}
	e := newTestExtractor(repo)

	_, err := e.Extract(context.Background(), "req-6", query.Request{
		Symbol: "BTCUSDT", Timeframe: "1d", Mode: query.ModeAll,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))
	assert.Equal(t, 2, apperrors.ExitCode(err))
	assert.Len(t, repo.queries, 1, "non-retryable failures stop after the first attempt")
}
