//go:build wireinject
// +build wireinject

package di

import (
	"Screener/pkg/config"
	"Screener/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories and adapters
		ProvideSnapshotStore,
		ProvideRosterStore,
		ProvideRecordSink,
		ProvideMetricSource,
		ProvideRosterSource,

		// Use cases
		ProvideRosterService,
		ProvideSyncEngine,
		ProvideProgressHub,
		ProvideSyncRunner,
		ProvideScreener,
		ProvideQueue,
		ProvideSyncRequestHandler,

		// Transport
		ProvideLimiter,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
