// Package app encapsulates the exporter lifecycle: one extraction per
// invocation, then teardown.
package app

import (
	"context"
	"fmt"

	apperrors "github.com/217th/tda-bq-marketdata-exporter/internal/errors"
	"github.com/217th/tda-bq-marketdata-exporter/internal/output"
	"github.com/217th/tda-bq-marketdata-exporter/internal/query"
	"github.com/217th/tda-bq-marketdata-exporter/internal/usecase"
	pkgch "github.com/217th/tda-bq-marketdata-exporter/pkg/clickhouse"
	"github.com/217th/tda-bq-marketdata-exporter/pkg/config"
	applogger "github.com/217th/tda-bq-marketdata-exporter/pkg/logger"
)

// App wires the extraction pipeline to its infrastructure for a single run.
type App struct {
	cfg       *config.Config
	l         *applogger.Logger
	requestID string
	chClient  *pkgch.Client
	extractor *usecase.Extractor
	writer    *output.Writer
}

// New creates an App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	requestID string,
	chClient *pkgch.Client,
	extractor *usecase.Extractor,
	writer *output.Writer,
) *App {
	return &App{
		cfg:       cfg,
		l:         l,
		requestID: requestID,
		chClient:  chClient,
		extractor: extractor,
		writer:    writer,
	}
}

// Run performs one extraction and blocks until it finishes. The returned
// error, if any, is classified; the caller selects the process exit code
// from it.
func (a *App) Run(ctx context.Context, req query.Request) error {
	a.l.Info("starting extraction",
		applogger.String("mode", string(req.Mode)),
		applogger.String("symbol", req.Symbol),
		applogger.String("timeframe", req.Timeframe),
		applogger.String("exchange", req.Exchange),
	)

	res, err := a.extractor.Extract(ctx, a.requestID, req)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNoData {
			a.l.Warn("no data found for query",
				applogger.String("symbol", req.Symbol),
				applogger.String("timeframe", req.Timeframe),
			)
			fmt.Printf("No data found for symbol=%s timeframe=%s\n", req.Symbol, req.Timeframe)
		}
		return err
	}

	path, url, err := a.writer.Save(ctx, a.requestID, res.Document)
	if err != nil {
		return err
	}

	a.l.Info("extraction completed",
		applogger.String("path", path),
		applogger.Int("records", len(res.Candles)),
	)

	if url != "" {
		fmt.Printf("Success! Data uploaded to: %s\n", url)
	} else {
		fmt.Printf("Success! Data saved to: %s\n", path)
	}
	fmt.Printf("Records: %d\n", len(res.Candles))
	return nil
}

// Close releases infrastructure clients.
func (a *App) Close() {
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
}
