//go:build wireinject
// +build wireinject

package di

import (
	"MatchPulse/pkg/config"
	"MatchPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisClient,

		// Repositories
		ProvideTickStore,
		ProvideFrameStore,
		ProvidePublisher,
		ProvideProviderClient,

		// Use cases
		ProvideTickCollector,
		ProvideFrameAggregator,

		// Fan-out and HTTP surface
		ProvideHub,
		ProvideScheduler,
		ProvideStreamHandler,
		ProvideFramesHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
