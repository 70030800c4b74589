//go:build wireinject
// +build wireinject

package di

import (
	"OptRoll/pkg/config"
	"OptRoll/pkg/server"

	"github.com/google/wire"
)

var coreSet = wire.NewSet(
	ProvideLogger,
	ProvidePolicy,
	ProvideMetrics,
	ProvideRedisClient,
	ProvideCache,
	ProvideMarketDataSource,
	ProvideATMSeries,
	ProvideChainSnapshot,
	ProvideSerialRunner,
	ProvideClickHouseClient,
	ProvideSeriesStorage,
	ProvideKafkaProducer,
	ProvideSeriesPublisher,
	ProvideSeriesProcessor,
)

// InitializeApp wires the HTTP server, the job queue and the sinks.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		coreSet,
		ProvideRunStatusStore,
		ProvideQueue,
		ProvideJobPublisher,
		ProvideSeriesHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeCLI wires a one-shot runner for command-line use.
func InitializeCLI(cfg *config.Config) (*CLI, error) {
	wire.Build(coreSet, ProvideCLI)
	return &CLI{}, nil
}
