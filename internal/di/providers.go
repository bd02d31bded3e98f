package di

import (
	"context"
	"fmt"
	"time"

	"github.com/217th/tda-bq-marketdata-exporter/internal/app"
	"github.com/217th/tda-bq-marketdata-exporter/internal/executor"
	"github.com/217th/tda-bq-marketdata-exporter/internal/output"
	"github.com/217th/tda-bq-marketdata-exporter/internal/query"
	internalrepo "github.com/217th/tda-bq-marketdata-exporter/internal/repository"
	"github.com/217th/tda-bq-marketdata-exporter/internal/usecase"
	pkgch "github.com/217th/tda-bq-marketdata-exporter/pkg/clickhouse"
	"github.com/217th/tda-bq-marketdata-exporter/pkg/config"
	applogger "github.com/217th/tda-bq-marketdata-exporter/pkg/logger"
)

// RequestID identifies one exporter invocation; it rides every log line and
// names the output file.
type RequestID string

// ProvideLogger creates the application logger scoped to the request id.
func ProvideLogger(cfg *config.Config, requestID RequestID) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(
		applogger.String("service", cfg.Service.Name),
		applogger.String("environment", cfg.Environment),
		applogger.String("request_id", string(requestID)),
	), nil
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// candles schema exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", cfg.ClickHouse.Database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			timestamp DateTime64(3, 'UTC'),
			exchange LowCardinality(String),
			symbol LowCardinality(String),
			timeframe LowCardinality(String),
			open Float64, high Float64, low Float64, close Float64, volume Float64
		) ENGINE = MergeTree
		PARTITION BY toDate(timestamp)
		ORDER BY (symbol, timeframe, timestamp)`, cfg.TableFQN()),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideQueryBuilder creates the query builder bound to the candles table.
func ProvideQueryBuilder(cfg *config.Config) *query.Builder {
	return query.NewBuilder(cfg.TableFQN())
}

// ProvideRepository creates the ClickHouse candle repository.
func ProvideRepository(client *pkgch.Client, l *applogger.Logger) usecase.Repository {
	return internalrepo.NewCandleRepository(client, l)
}

// ProvideExecutor creates the retry executor with the configured backoff.
func ProvideExecutor(cfg *config.Config, l *applogger.Logger) *executor.Executor {
	return executor.New(executor.Policy{
		BaseDelay:   cfg.Retry.BaseDelay,
		Factor:      cfg.Retry.Factor,
		MaxDelay:    cfg.Retry.MaxDelay,
		MaxAttempts: cfg.Retry.MaxAttempts,
	}, l)
}

// ProvideExtractor creates the extraction use case.
func ProvideExtractor(builder *query.Builder, repo usecase.Repository, exec *executor.Executor, l *applogger.Logger) *usecase.Extractor {
	return usecase.NewExtractor(builder, repo, exec, l)
}

// ProvideUploader creates the object storage uploader, or nil when object
// storage is disabled.
func ProvideUploader(cfg *config.Config, l *applogger.Logger) (*output.Uploader, error) {
	if !cfg.Output.Storage.Enabled {
		return nil, nil
	}
	return output.NewUploader(output.UploaderConfig{
		Endpoint:  cfg.Output.Storage.Endpoint,
		AccessKey: cfg.Output.Storage.AccessKey,
		SecretKey: cfg.Output.Storage.SecretKey,
		Secure:    cfg.Output.Storage.Secure,
		Bucket:    cfg.Output.Storage.Bucket,
		URLExpiry: cfg.Output.Storage.URLExpiry,
	}, l)
}

// ProvideWriter creates the output writer.
func ProvideWriter(cfg *config.Config, uploader *output.Uploader, l *applogger.Logger) *output.Writer {
	return output.NewWriter(cfg.Output.Dir, uploader, l)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	requestID RequestID,
	chClient *pkgch.Client,
	extractor *usecase.Extractor,
	writer *output.Writer,
) *app.App {
	return app.New(cfg, l, string(requestID), chClient, extractor, writer)
}
