//go:build wireinject
// +build wireinject

package di

import (
	"TrendForge/pkg/config"
	"TrendForge/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideQueue,

		// Stores
		ProvideSourceStore,
		ProvideNodeStore,
		ProvideSignalStore,
		ProvideAttestationStore,
		ProvideRuleStore,
		ProvideEventStore,
		ProvideRebuildJobStore,
		ProvideAuditStore,
		ProvideSettingsStore,
		ProvideCandleStore,
		ProvideSignalPublisher,

		// Use cases
		ProvideAggregator,
		ProvideConsensusEngine,
		ProvideSignalIntake,
		ProvideOracleRegistry,
		ProvideRuleAdmin,
		ProvideRebuildScheduler,
		ProvideCandlesUseCase,
		ProvideStreamCollector,

		// HTTP surface and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
