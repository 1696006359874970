package di

import (
	"context"
	"fmt"
	"time"

	domrepo "Screener/internal/domain/repository"
	domsvc "Screener/internal/domain/service"
	"Screener/internal/domain/models"
	"Screener/internal/handler/api"
	"Screener/internal/handler/ws"
	mid "Screener/internal/middleware"
	internalrepo "Screener/internal/repository"
	apimetrics "Screener/internal/service/metrics"
	"Screener/internal/service/ratelimit"
	"Screener/internal/service/wiki"
	"Screener/internal/service/yahoo"
	"Screener/internal/usecase"
	"Screener/pkg/cache"
	pkgch "Screener/pkg/clickhouse"
	"Screener/pkg/config"
	xhttp "Screener/pkg/http"
	pkgkafka "Screener/pkg/kafka"
	applogger "Screener/pkg/logger"
	"Screener/pkg/metrics"
	"Screener/pkg/queue"
	"Screener/pkg/server"
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder and registers the
// upstream source collectors.
func ProvideMetrics() *metrics.Recorder {
	apimetrics.Register()
	return metrics.New(nil)
}

// ProvideRedisCache connects to Redis, or returns nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdle, 30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache layers process memory over Redis when available. Locks taken
// through it are shared across processes only in the Redis case.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache()
	}
	return cache.NewLayeredCache(rc, cache.WithL1(cfg.Redis.L1Size, cfg.Redis.L1TTL))
}

// ProvideClickHouseClient creates a ClickHouse client and its tables when the
// clickhouse store is selected, nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Store.Type != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithAuth(cfg.ClickHouse.Database, cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(cfg.ClickHouse.MaxOpenConns, cfg.ClickHouse.MaxIdleConns),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := internalrepo.SchemaStatements(cfg.ClickHouse.Database, cfg.Store.MetricsTable, cfg.Store.RosterTable)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideSnapshotStore selects the metrics table backend from store.type.
func ProvideSnapshotStore(cfg *config.Config, ch *pkgch.Client, rc *cache.RedisCache, l *applogger.Logger) (domrepo.SnapshotStore, error) {
	name := cfg.Store.MetricsTable
	switch cfg.Store.Type {
	case "clickhouse":
		return internalrepo.NewCHTable[models.MetricRecord](ch, name, internalrepo.MetricCodec{}, l), nil
	case "redis":
		if rc == nil {
			return nil, fmt.Errorf("redis store selected but redis is disabled")
		}
		return internalrepo.NewRedisTable[models.MetricRecord](name, rc, l), nil
	default:
		return internalrepo.NewMemoryTable[models.MetricRecord](name), nil
	}
}

// ProvideRosterStore selects the roster table backend from store.type.
func ProvideRosterStore(cfg *config.Config, ch *pkgch.Client, rc *cache.RedisCache, l *applogger.Logger) (domrepo.RosterStore, error) {
	name := cfg.Store.RosterTable
	switch cfg.Store.Type {
	case "clickhouse":
		return internalrepo.NewCHTable[models.RosterEntry](ch, name, internalrepo.RosterCodec{}, l), nil
	case "redis":
		if rc == nil {
			return nil, fmt.Errorf("redis store selected but redis is disabled")
		}
		return internalrepo.NewRedisTable[models.RosterEntry](name, rc, l), nil
	default:
		return internalrepo.NewMemoryTable[models.RosterEntry](name), nil
	}
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Compression, cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideRecordSink publishes flushed records to metrics_topic when Kafka is enabled.
func ProvideRecordSink(producer *pkgkafka.Producer, cfg *config.Config) domrepo.RecordSink {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.MetricsTopic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML, or nil
// when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.LoggingHook{Log: l})
	return consumer, nil
}

// ProvideMetricSource creates the quote API adapter.
func ProvideMetricSource(cfg *config.Config) domsvc.MetricSource {
	return yahoo.New(cfg)
}

// ProvideRosterSource creates the constituents page scraper.
func ProvideRosterSource(cfg *config.Config, l *applogger.Logger) domsvc.RosterSource {
	return wiki.New(cfg, l)
}

func ProvideRosterService(cfg *config.Config, source domsvc.RosterSource, store domrepo.RosterStore, c cache.Service, l *applogger.Logger) *usecase.RosterService {
	return usecase.NewRosterService(cfg, source, store, c, l)
}

// ProvideSyncEngine builds the engine with pacing, batching and the shared run guard.
func ProvideSyncEngine(
	cfg *config.Config,
	rosters *usecase.RosterService,
	source domsvc.MetricSource,
	store domrepo.SnapshotStore,
	c cache.Service,
	sink domrepo.RecordSink,
	m *metrics.Recorder,
	l *applogger.Logger,
) *usecase.SyncEngine {
	opts := []usecase.SyncEngineOption{
		usecase.WithBatchSize(cfg.Sync.BatchSize),
		usecase.WithPacer(mid.NewFixedPacer(cfg.Sync.Pacing)),
		usecase.WithLocker(c, cfg.Sync.LockTTL),
		usecase.WithSyncMetrics(m),
		usecase.WithSyncLogger(l),
	}
	if sink != nil {
		opts = append(opts, usecase.WithRecordSink(sink))
	}
	return usecase.NewSyncEngine(rosters, source, store, opts...)
}

func ProvideProgressHub(l *applogger.Logger) *ws.ProgressHub {
	return ws.NewProgressHub(l)
}

func ProvideSyncRunner(cfg *config.Config, engine *usecase.SyncEngine, hub *ws.ProgressHub, l *applogger.Logger) *usecase.SyncRunner {
	return usecase.NewSyncRunner(cfg, engine, hub, l)
}

func ProvideScreener(
	cfg *config.Config,
	rosters *usecase.RosterService,
	store domrepo.SnapshotStore,
	source domsvc.MetricSource,
	c cache.Service,
	l *applogger.Logger,
) *usecase.Screener {
	return usecase.NewScreener(cfg, rosters, store, source, c, l)
}

// ProvideQueue creates the Redis job queue with the sync job registered, or
// nil when Redis is disabled.
func ProvideQueue(cfg *config.Config, rc *cache.RedisCache, runner *usecase.SyncRunner, l *applogger.Logger) *queue.RedisQueue {
	if rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Redis.Queue.Workers,
		RetryLimit: cfg.Redis.Queue.RetryLimit,
		RetryDelay: cfg.Redis.Queue.RetryDelay,
		PendingTTL: cfg.Sync.LockTTL,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
	q.RegisterJob(usecase.NewSyncJob(runner, l))
	return q
}

func ProvideSyncRequestHandler(cfg *config.Config, runner *usecase.SyncRunner, m *metrics.Recorder, l *applogger.Logger) *usecase.SyncRequestHandler {
	return usecase.NewSyncRequestHandler(cfg.Kafka.SyncTopic, runner, m, l)
}

func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	if cfg.Server.RateLimit.Burst <= 0 {
		return nil
	}
	return ratelimit.New(cfg.Server.RateLimit.Burst, cfg.Server.RateLimit.PerSecond)
}

// ProvideHTTPHandler registers the API and the progress stream on one server.
func ProvideHTTPHandler(
	l *applogger.Logger,
	screener *usecase.Screener,
	runner *usecase.SyncRunner,
	q *queue.RedisQueue,
	limiter *ratelimit.Limiter,
	hub *ws.ProgressHub,
) xhttp.Handler {
	var qs queue.QueueService
	if q != nil {
		qs = q
	}
	return xhttp.Handlers{
		api.NewScreenerEchoHandler(l, screener, runner, qs, limiter),
		hub,
	}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	runner *usecase.SyncRunner,
	hub *ws.ProgressHub,
	q *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	kh *usecase.SyncRequestHandler,
	producer *pkgkafka.Producer,
	sink domrepo.RecordSink,
	ch *pkgch.Client,
	c cache.Service,
) *server.App {
	opts := []server.Option{server.WithScheduler(runner)}
	if q != nil {
		opts = append(opts, server.WithQueue(q))
	}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer, kh))
	}
	if ch != nil {
		opts = append(opts, server.WithCloser("clickhouse", ch.Close))
	}
	opts = append(opts, server.WithCloser("cache", c.Close))
	if producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			Service:   "screener",
			Topic:     cfg.Kafka.LogTopic,
			Publisher: producer,
		})
		opts = append(opts,
			server.WithCloser("kafka producer", producer.Close),
			server.WithCloser("log collector", func() error { l.RemoveCollector(); return nil }),
		)
	}
	if sink != nil {
		opts = append(opts, server.WithCloser("record sink", sink.Close))
	}
	opts = append(opts, server.WithCloser("progress hub", func() error { hub.Close(); return nil }))
	return server.New(cfg, l, handler, opts...)
}
