package di

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"TrendForge/internal/domain/repository"
	"TrendForge/internal/handler/api"
	mid "TrendForge/internal/middleware"
	internalrepo "TrendForge/internal/repository"
	"TrendForge/internal/service/stream"
	"TrendForge/internal/usecase"
	pkgch "TrendForge/pkg/clickhouse"
	"TrendForge/pkg/config"
	xhttp "TrendForge/pkg/http"
	pkgkafka "TrendForge/pkg/kafka"
	applogger "TrendForge/pkg/logger"
	"TrendForge/pkg/metrics"
	"TrendForge/pkg/queue"
	"TrendForge/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisClient creates the shared Redis client.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return client, nil
}

// ProvideClickHouseClient creates a ClickHouse client. Returns nil when
// ClickHouse is not configured; candle storage then stays in memory.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.ClickHouse.Host == "" {
		return nil, nil
	}
	client, err := pkgch.NewClient(pkgch.Config{
		Host:         cfg.ClickHouse.Host,
		Port:         cfg.ClickHouse.Port,
		Database:     cfg.ClickHouse.Database,
		User:         cfg.ClickHouse.User,
		Password:     cfg.ClickHouse.Password,
		UseHTTP:      cfg.ClickHouse.UseHTTP,
		AsyncInsert:  cfg.ClickHouse.AsyncInsert,
		WaitForAsync: cfg.ClickHouse.WaitForAsync,
		DialTimeout:  cfg.ClickHouse.DialTimeout,
		ReadTimeout:  cfg.ClickHouse.ReadTimeout,
		MaxExecTime:  cfg.ClickHouse.MaxExecutionTime,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil without brokers.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		RequiredAcks: cfg.Kafka.RequiredAcks,
		Compression:  cfg.Kafka.Compression,
		MaxAttempts:  cfg.Kafka.Producer.MaxAttempts,
		WriteTimeout: cfg.Kafka.Producer.WriteTimeout,
		ReadTimeout:  cfg.Kafka.Producer.ReadTimeout,
		BatchSize:    cfg.Kafka.Producer.BatchSize,
		BatchBytes:   cfg.Kafka.Producer.BatchBytes,
		BatchTimeout: cfg.Kafka.Producer.Linger,
		Async:        cfg.Kafka.Producer.Async,
		HashByKey:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer, or nil without brokers.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:     cfg.Kafka.Brokers,
		GroupID:     cfg.Kafka.Consumer.GroupID,
		WorkerCount: cfg.Kafka.Consumer.Workers,
		BufferSize:  cfg.Kafka.Consumer.BufferSize,
		RetryMax:    cfg.Kafka.Consumer.RetryMax,
		BackoffMin:  cfg.Kafka.Consumer.BackoffMin,
		BackoffMax:  cfg.Kafka.Consumer.BackoffMax,
		DLQTopic:    cfg.Kafka.Consumer.DLQTopic,
		MinBytes:    cfg.Kafka.Consumer.MinBytes,
		MaxBytes:    cfg.Kafka.Consumer.MaxBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideQueue creates the Redis-backed job queue.
func ProvideQueue(cfg *config.Config, l *applogger.Logger, client *redis.Client) *queue.RedisQueue {
	return queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, client)
}

// ProvideSourceStore creates the oracle source registry.
func ProvideSourceStore() repository.SourceStore {
	return internalrepo.NewMemorySourceStore()
}

// ProvideNodeStore creates the validator node registry.
func ProvideNodeStore() repository.NodeStore {
	return internalrepo.NewMemoryNodeStore()
}

// ProvideSignalStore creates the signal store.
func ProvideSignalStore() repository.SignalStore {
	return internalrepo.NewMemorySignalStore()
}

// ProvideAttestationStore creates the attestation store.
func ProvideAttestationStore() repository.AttestationStore {
	return internalrepo.NewMemoryAttestationStore()
}

// ProvideRuleStore creates the versioned rule store.
func ProvideRuleStore() repository.RuleStore {
	return internalrepo.NewMemoryRuleStore()
}

// ProvideEventStore creates the aggregation event history.
func ProvideEventStore() repository.EventStore {
	return internalrepo.NewMemoryEventStore()
}

// ProvideRebuildJobStore creates the rebuild job store.
func ProvideRebuildJobStore() repository.RebuildJobStore {
	return internalrepo.NewMemoryRebuildJobStore()
}

// ProvideAuditStore creates the audit trail.
func ProvideAuditStore() repository.AuditStore {
	return internalrepo.NewMemoryAuditStore()
}

// ProvideSettingsStore creates the versioned consensus settings store.
func ProvideSettingsStore() repository.ConsensusSettingsStore {
	return internalrepo.NewMemorySettingsStore()
}

// ProvideCandleStore selects ClickHouse when configured and layers the
// Redis read cache over it.
func ProvideCandleStore(ch *pkgch.Client, rdb *redis.Client, cfg *config.Config, l *applogger.Logger) (repository.CandleStore, error) {
	var inner repository.CandleStore
	if ch != nil {
		store, err := internalrepo.NewCHCandleStore(ch)
		if err != nil {
			return nil, err
		}
		store.SetLogger(l)
		inner = store
	} else {
		inner = internalrepo.NewMemoryCandleStore()
	}
	return internalrepo.NewCachedCandleStore(inner, rdb, cfg.Cache.CandleTTL, l), nil
}

// ProvideSignalPublisher creates the approved-signal fan-out, or nil
// when Kafka is not configured.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.ApprovedTopic)
}

// ProvideAggregator creates the candle aggregation engine.
func ProvideAggregator(
	rules repository.RuleStore,
	candles repository.CandleStore,
	events repository.EventStore,
	sources repository.SourceStore,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.Aggregator {
	return usecase.NewAggregator(rules, candles, events, sources, m, l, usecase.AggregatorConfig{
		FinalizeInterval: cfg.Aggregation.FinalizeInterval,
		EventBuffer:      cfg.Aggregation.EventBuffer,
	})
}

// ProvideConsensusEngine creates the consensus engine.
func ProvideConsensusEngine(
	signals repository.SignalStore,
	atts repository.AttestationStore,
	nodes repository.NodeStore,
	audits repository.AuditStore,
	settings repository.ConsensusSettingsStore,
	pub repository.SignalPublisher,
	agg *usecase.Aggregator,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.ConsensusEngine {
	return usecase.NewConsensusEngine(signals, atts, nodes, audits, settings, pub, agg, m, l, usecase.ConsensusConfig{
		MinAttestors:         cfg.Consensus.MinAttestors,
		AutoApproveThreshold: cfg.Consensus.AutoApproveThreshold,
		RiskCeiling:          cfg.Consensus.RiskCeiling,
		AttestationTimeout:   cfg.Consensus.AttestationTimeout,
		SweepInterval:        cfg.Consensus.SweepInterval,
		TrustAlpha:           cfg.Consensus.TrustAlpha,
		TrustEpsilon:         cfg.Consensus.TrustEpsilon,
		VarianceWeight:       cfg.Consensus.VarianceWeight,
		FlagWeight:           cfg.Consensus.FlagWeight,
	})
}

// ProvideSignalIntake creates the intake use case.
func ProvideSignalIntake(
	sources repository.SourceStore,
	signals repository.SignalStore,
	audits repository.AuditStore,
	q *queue.RedisQueue,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.SignalIntake {
	return usecase.NewSignalIntake(sources, signals, audits, q, m, l, cfg.Symbols)
}

// ProvideOracleRegistry creates the registry use case.
func ProvideOracleRegistry(
	sources repository.SourceStore,
	nodes repository.NodeStore,
	audits repository.AuditStore,
	l *applogger.Logger,
) *usecase.OracleRegistry {
	return usecase.NewOracleRegistry(sources, nodes, audits, l)
}

// ProvideRuleAdmin creates the rule admin use case.
func ProvideRuleAdmin(rules repository.RuleStore, audits repository.AuditStore, l *applogger.Logger) *usecase.RuleAdmin {
	return usecase.NewRuleAdmin(rules, audits, l)
}

// ProvideRebuildScheduler creates the rebuild scheduler.
func ProvideRebuildScheduler(
	jobs repository.RebuildJobStore,
	events repository.EventStore,
	candles repository.CandleStore,
	rules repository.RuleStore,
	audits repository.AuditStore,
	q *queue.RedisQueue,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.RebuildScheduler {
	return usecase.NewRebuildScheduler(jobs, events, candles, rules, audits, q, m, l, usecase.RebuildConfig{
		BucketRetries: cfg.Rebuild.BucketRetries,
	})
}

// ProvideCandlesUseCase creates the candle query use case.
func ProvideCandlesUseCase(candles repository.CandleStore) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(candles)
}

// ProvideStreamCollector creates the live oracle stream collector, or
// nil when the stream is disabled.
func ProvideStreamCollector(
	cfg *config.Config,
	intake *usecase.SignalIntake,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.StreamCollector {
	if !cfg.Stream.Enabled {
		return nil
	}
	s := stream.New(
		cfg.Stream.SourceKey,
		cfg.Stream.APIKey,
		cfg.Stream.WebSocketURL,
		cfg.Stream.Symbols,
		cfg.Stream.ReconnectDelay,
		cfg.Stream.PingInterval,
	)
	pipe := mid.NewIntakePipeline(intake, m,
		mid.WithMaxRPS(cfg.Stream.MaxEventRate),
		mid.WithBufferSize(cfg.Stream.EventBuffer),
	)
	return usecase.NewStreamCollector(s, pipe, m, l)
}

// ProvideHTTPHandler bundles route groups into one registration.
func ProvideHTTPHandler(
	l *applogger.Logger,
	intake *usecase.SignalIntake,
	engine *usecase.ConsensusEngine,
	registry *usecase.OracleRegistry,
	candles *usecase.CandlesUseCase,
	rules *usecase.RuleAdmin,
	scheduler *usecase.RebuildScheduler,
	ch *pkgch.Client,
	rdb *redis.Client,
) xhttp.Handler {
	checks := map[string]api.HealthChecker{
		"redis": func() error { return rdb.Ping(ctxBackground()).Err() },
	}
	if ch != nil {
		checks["clickhouse"] = func() error { return ch.Health(ctxBackground()) }
	}
	return api.NewComposite(
		api.NewSignalsHandler(l, intake, engine),
		api.NewOracleHandler(l, registry),
		api.NewCandlesHandler(l, candles, rules, scheduler),
		api.NewHealthHandler(checks),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	engine *usecase.ConsensusEngine,
	agg *usecase.Aggregator,
	intake *usecase.SignalIntake,
	collector *usecase.StreamCollector,
	consumer *pkgkafka.Consumer,
	q *queue.RedisQueue,
	scheduler *usecase.RebuildScheduler,
	pub repository.SignalPublisher,
	ch *pkgch.Client,
	rdb *redis.Client,
	m repository.Metrics,
) *server.App {
	q.RegisterJobs([]queue.Job{
		usecase.NewConsensusEvalJob(engine),
		usecase.NewRebuildRunJob(scheduler),
	})
	if consumer != nil {
		consumer.RegisterHandler(usecase.NewKafkaTradeVolumeHandler(cfg.Kafka.TradeTopic, agg, m))
		consumer.RegisterHandler(usecase.NewKafkaRawMetricHandler(cfg.Kafka.MetricTopic, intake, m))
	}
	return server.New(cfg, l, handler, engine, agg, collector, consumer, q, pub, ch, rdb)
}

func ctxBackground() context.Context { return context.Background() }
