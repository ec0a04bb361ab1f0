package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	drepo "MatchPulse/internal/domain/repository"
	"MatchPulse/internal/handler/api"
	internalrepo "MatchPulse/internal/repository"
	"MatchPulse/internal/service/provider"
	"MatchPulse/internal/usecase"
	"MatchPulse/internal/ws"
	pkgch "MatchPulse/pkg/clickhouse"
	"MatchPulse/pkg/config"
	pkgkafka "MatchPulse/pkg/kafka"
	applogger "MatchPulse/pkg/logger"
	"MatchPulse/pkg/metrics"
	"MatchPulse/pkg/scheduler"
	"MatchPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideClickHouseClient creates the ClickHouse client and bootstraps the
// tick schema. The pool is sized at least to the collector concurrency so
// concurrent match tasks get real statement parallelism.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	maxOpen := cfg.ClickHouse.MaxOpenConns
	if maxOpen < cfg.Collector.Concurrency {
		maxOpen = cfg.Collector.Concurrency
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(maxOpen, cfg.ClickHouse.MaxIdleConns),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideRedisClient creates the channel-bus client.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	client, err := internalrepo.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("redis client: %w", err)
	}
	return client, nil
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideProviderClient creates the upstream source adapter.
func ProvideProviderClient(cfg *config.Config) *provider.Client {
	return provider.New(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.FetchTimeout)
}

// ProvideTickStore creates the ClickHouse tick store.
func ProvideTickStore(chClient *pkgch.Client, cfg *config.Config, logger *applogger.Logger) drepo.TickStore {
	return internalrepo.NewClickHouseTickStore(chClient.DB(), cfg.ClickHouse.Database, logger)
}

// ProvideFrameStore creates the ClickHouse frame store.
func ProvideFrameStore(chClient *pkgch.Client, cfg *config.Config, logger *applogger.Logger) drepo.FrameStore {
	return internalrepo.NewClickHouseFrameStore(chClient.DB(), cfg.ClickHouse.Database, logger)
}

// ProvidePublisher creates the Redis channel publisher.
func ProvidePublisher(client *redis.Client) drepo.Publisher {
	return internalrepo.NewRedisPublisher(client)
}

// ProvideTickCollector creates the collection cycle driver.
func ProvideTickCollector(
	src *provider.Client,
	store drepo.TickStore,
	pub drepo.Publisher,
	m drepo.Metrics,
	logger *applogger.Logger,
	cfg *config.Config,
) *usecase.TickCollector {
	ccfg := usecase.DefaultCollectorConfig()
	ccfg.Concurrency = cfg.Collector.Concurrency
	ccfg.TailSize = cfg.Collector.TailSize
	return usecase.NewTickCollector(src, src, store, pub, m, logger, ccfg)
}

// ProvideFrameAggregator creates the aggregation cycle driver.
func ProvideFrameAggregator(
	src *provider.Client,
	ticks drepo.TickStore,
	frames drepo.FrameStore,
	pub drepo.Publisher,
	m drepo.Metrics,
	logger *applogger.Logger,
	cfg *config.Config,
) *usecase.FrameAggregator {
	acfg := usecase.DefaultAggregatorConfig()
	acfg.ActivityWindow = cfg.Aggregator.ActivityWindow
	acfg.FrameWindow = cfg.Aggregator.FrameWindow
	acfg.RefreshWindow = cfg.Aggregator.RefreshWindow
	return usecase.NewFrameAggregator(ticks, frames, src, pub, m, logger, acfg)
}

// ProvideHub creates the websocket fan-out hub.
func ProvideHub(client *redis.Client, m drepo.Metrics, logger *applogger.Logger) *ws.Hub {
	return ws.NewHub(ws.NewRedisSubscriber(client), m, logger)
}

// ProvideScheduler creates the shared cycle scheduler.
func ProvideScheduler(logger *applogger.Logger) *scheduler.Scheduler {
	return scheduler.New(scheduler.RealClock{}, logger)
}

// ProvideStreamHandler creates the websocket endpoint handler.
func ProvideStreamHandler(hub *ws.Hub, logger *applogger.Logger) *api.StreamHandler {
	return api.NewStreamHandler(hub, logger)
}

// ProvideFramesHandler creates the read-API handler.
func ProvideFramesHandler(agg *usecase.FrameAggregator, store drepo.TickStore, rdb *redis.Client, logger *applogger.Logger) *api.FramesHandler {
	health := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := store.Health(ctx); err != nil {
			return fmt.Errorf("clickhouse: %w", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}
	return api.NewFramesHandler(agg, store, health, logger)
}

// ProvideApp assembles the application, attaching the optional archival
// exporter when export is enabled.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	collector *usecase.TickCollector,
	aggregator *usecase.FrameAggregator,
	hub *ws.Hub,
	sched *scheduler.Scheduler,
	chClient *pkgch.Client,
	pub drepo.Publisher,
	streamHandler *api.StreamHandler,
	framesHandler *api.FramesHandler,
) (*server.App, error) {
	app := server.New(cfg, logger, collector, aggregator, hub, sched, chClient, pub, streamHandler, framesHandler)

	if cfg.Export.Enabled {
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(cfg.Export.Brokers),
			pkgkafka.WithHashByKey(true),
		)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		exporter := internalrepo.NewKafkaTickExporter(producer, cfg.Export.Topic, logger)
		collector.SetExporter(exporter)
		app.SetExporter(exporter)
	}

	return app, nil
}
