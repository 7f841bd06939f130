package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"TrendForge/internal/domain/repository"
	"TrendForge/internal/usecase"
	pkgch "TrendForge/pkg/clickhouse"
	"TrendForge/pkg/config"
	xhttp "TrendForge/pkg/http"
	pkgkafka "TrendForge/pkg/kafka"
	applogger "TrendForge/pkg/logger"
	"TrendForge/pkg/queue"
)

// App encapsulates the application lifecycle: consensus, aggregation,
// queue workers, kafka intake, the live stream and the HTTP surface.
type App struct {
	cfg         *config.Config
	l           *applogger.Logger
	handler     xhttp.Handler
	engine      *usecase.ConsensusEngine
	aggregator  *usecase.Aggregator
	collector   *usecase.StreamCollector
	consumer    *pkgkafka.Consumer
	queue       *queue.RedisQueue
	publisher   repository.SignalPublisher
	chClient    *pkgch.Client
	redisClient *redis.Client
	httpServer  *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	engine *usecase.ConsensusEngine,
	aggregator *usecase.Aggregator,
	collector *usecase.StreamCollector,
	consumer *pkgkafka.Consumer,
	q *queue.RedisQueue,
	publisher repository.SignalPublisher,
	chClient *pkgch.Client,
	redisClient *redis.Client,
) *App {
	return &App{
		cfg:         cfg,
		l:           l,
		handler:     handler,
		engine:      engine,
		aggregator:  aggregator,
		collector:   collector,
		consumer:    consumer,
		queue:       q,
		publisher:   publisher,
		chClient:    chClient,
		redisClient: redisClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// queue workers first so intake can hand off immediately
	if err := a.queue.Start(); err != nil {
		return err
	}
	a.l.Info("queue workers started")

	a.engine.Start()
	a.l.Info("consensus engine started")

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("kafka consumer started",
			applogger.String("trade_topic", a.cfg.Kafka.TradeTopic),
			applogger.String("metric_topic", a.cfg.Kafka.MetricTopic),
		)
	}

	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				a.l.Error("stream collector error", applogger.Error(err))
			}
		}()
		a.l.Info("stream collector started",
			applogger.Strings("symbols", a.cfg.Stream.Symbols),
		)
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops services in dependency order: stop producing inputs
// first, then drain processors, then close clients.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.collector != nil {
		if err := a.collector.Stop(); err != nil {
			a.l.Warn("stream collector stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.engine.Stop()
	a.aggregator.Stop()

	if err := a.queue.Stop(shutdownCtx); err != nil {
		a.l.Warn("queue stop error", applogger.Error(err))
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.l.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.l.Warn("redis close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
