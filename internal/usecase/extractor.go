package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/217th/tda-bq-marketdata-exporter/internal/domain/models"
	apperrors "github.com/217th/tda-bq-marketdata-exporter/internal/errors"
	"github.com/217th/tda-bq-marketdata-exporter/internal/executor"
	"github.com/217th/tda-bq-marketdata-exporter/internal/output"
	"github.com/217th/tda-bq-marketdata-exporter/internal/query"
	applogger "github.com/217th/tda-bq-marketdata-exporter/pkg/logger"
)

// Repository runs a built query and returns candle rows.
type Repository interface {
	Query(ctx context.Context, q query.BuiltQuery) ([]models.Candle, error)
}

// Extractor orchestrates one extraction: validate and build the query, run
// it with retries, and assemble the export document.
type Extractor struct {
	builder *query.Builder
	repo    Repository
	exec    *executor.Executor
	l       *applogger.Logger
	now     func() time.Time
}

func NewExtractor(builder *query.Builder, repo Repository, exec *executor.Executor, l *applogger.Logger) *Extractor {
	return &Extractor{
		builder: builder,
		repo:    repo,
		exec:    exec,
		l:       l,
		now:     time.Now,
	}
}

// Result is the outcome of a successful extraction.
type Result struct {
	Candles  []models.Candle
	Document output.Document
}

// Extract runs the full pipeline for one request. Zero rows is reported as
// a NoData classified error, which carries exit code 0: an empty result is
// a successful run the caller may still want to announce.
func (e *Extractor) Extract(ctx context.Context, requestID string, req query.Request) (*Result, error) {
	built, err := e.builder.Build(req)
	if err != nil {
		return nil, err
	}

	e.l.Info("query built",
		applogger.String("mode", string(req.Mode)),
		applogger.String("symbol", req.Symbol),
		applogger.String("timeframe", req.Timeframe),
		applogger.Int("query_length", len(built.Text)),
	)

	qctx := apperrors.QueryContext{
		Symbol:    req.Symbol,
		Timeframe: req.Timeframe,
		Mode:      string(req.Mode),
	}
	candles, err := e.exec.Execute(ctx, built, qctx, e.repo.Query)
	if err != nil {
		return nil, err
	}

	if len(candles) == 0 {
		return nil, apperrors.Newf(apperrors.KindNoData,
			"no data found for symbol=%s timeframe=%s", req.Symbol, req.Timeframe).
			WithContext("symbol", req.Symbol).
			WithContext("timeframe", req.Timeframe).
			WithContext("mode", string(req.Mode))
	}

	if req.Mode == query.ModeNeighborhood {
		requested := req.NBefore + req.NAfter + 1
		if len(candles) < requested {
			e.l.Warn("neighborhood returned fewer rows than requested",
				applogger.Int("requested", requested),
				applogger.Int("returned", len(candles)),
			)
		}
	}

	doc := output.Document{
		Metadata: output.Metadata{
			RequestID:        requestID,
			RequestTimestamp: e.now().UTC().Format("2006-01-02T15:04:05Z"),
			Symbol:           req.Symbol,
			Timeframe:        req.Timeframe,
			QueryType:        strings.ToLower(string(req.Mode)),
			QueryParameters:  queryParameters(req),
		},
		Data: output.Transform(candles),
	}

	return &Result{Candles: candles, Document: doc}, nil
}

func queryParameters(req query.Request) map[string]any {
	params := map[string]any{}
	switch req.Mode {
	case query.ModeRange:
		params["from_timestamp"] = req.From.UTC().Format(time.RFC3339)
		params["to_timestamp"] = req.To.UTC().Format(time.RFC3339)
	case query.ModeNeighborhood:
		params["center_timestamp"] = req.Center.UTC().Format(time.RFC3339)
		params["n_before"] = req.NBefore
		params["n_after"] = req.NAfter
	}
	if req.Exchange != "" {
		params["exchange"] = req.Exchange
	}
	return params
}
