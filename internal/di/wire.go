//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/217th/tda-bq-marketdata-exporter/internal/app"
	"github.com/217th/tda-bq-marketdata-exporter/pkg/config"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config, requestID RequestID) (*app.App, error) {
	wire.Build(
		// Infrastructure
		ProvideLogger,
		ProvideClickHouseClient,

		// Query engine
		ProvideQueryBuilder,
		ProvideRepository,
		ProvideExecutor,

		// Use cases
		ProvideExtractor,

		// Output
		ProvideUploader,
		ProvideWriter,

		// Application
		ProvideApp,
	)
	return &app.App{}, nil
}
