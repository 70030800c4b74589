package di

import (
	"context"
	"fmt"
	"time"

	drepo "OptRoll/internal/domain/repository"
	"OptRoll/internal/handler/api"
	internalrepo "OptRoll/internal/repository"
	icache "OptRoll/internal/service/cache"
	"OptRoll/internal/service/csvsource"
	"OptRoll/internal/service/polygon"
	"OptRoll/internal/service/ratelimit"
	"OptRoll/internal/usecase"
	xcache "OptRoll/pkg/cache"
	pkgch "OptRoll/pkg/clickhouse"
	"OptRoll/pkg/config"
	xhttp "OptRoll/pkg/http"
	pkgkafka "OptRoll/pkg/kafka"
	xlogger "OptRoll/pkg/logger"
	"OptRoll/pkg/metrics"
	"OptRoll/pkg/queue"
	"OptRoll/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// Optional infrastructure providers return nil when the configuration does
// not ask for them; consumers treat nil as disabled.

func ProvideLogger(cfg *config.Config) (*xlogger.Logger, error) {
	return xlogger.New(&xlogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

func ProvidePolicy(cfg *config.Config) usecase.ATMPolicy {
	return usecase.ATMPolicy{
		MinDaysToExpiry:      cfg.ATM.MinDaysToExpiry,
		MaxDaysToExpiry:      cfg.ATM.MaxDaysToExpiry,
		RollDaysBeforeExpiry: cfg.ATM.RollDaysBeforeExpiry,
		StrikeRangePct:       cfg.ATM.StrikeRangePct,
		MonthlyExpiryOnly:    cfg.ATM.MonthlyExpiryOnly,
		BatchSize:            cfg.ATM.BatchSize,
		TickerParseFallback:  cfg.ATM.TickerParseFallback,
	}
}

func ProvideMetrics() drepo.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideRedisClient dials Redis when the cache or the job queue needs it.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	needed := cfg.Queue.Enabled ||
		(cfg.Cache.Enabled && (cfg.Cache.Backend == "redis" || cfg.Cache.Backend == "layered"))
	if !needed {
		return nil, nil
	}
	client, _, err := xcache.NewRedisClient(
		xcache.WithRedisHost(cfg.Redis.Host),
		xcache.WithRedisPort(cfg.Redis.Port),
		xcache.WithRedisPassword(cfg.Redis.Password),
		xcache.WithRedisDB(cfg.Redis.DB),
		xcache.WithRedisPool(cfg.Redis.PoolSize, 2, cfg.Redis.Timeout),
		xcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis client: %w", err)
	}
	return client, nil
}

// ProvideCache returns the reference-data cache, or nil when caching is off.
func ProvideCache(cfg *config.Config, client *redis.Client) xcache.Service {
	if !cfg.Cache.Enabled {
		return nil
	}
	switch cfg.Cache.Backend {
	case "redis":
		return xcache.NewRedisCacheFromClient(client, cfg.Redis.Prefix)
	case "layered":
		return xcache.NewLayeredCache(xcache.NewRedisCacheFromClient(client, cfg.Redis.Prefix), cfg.Cache.MemorySize, time.Hour)
	default:
		return xcache.NewMemoryCache(
			xcache.WithMemoryMaxSize(cfg.Cache.MemorySize),
			xcache.WithMemoryDefaultTTL(cfg.Cache.TTL),
		)
	}
}

// ProvideMarketDataSource builds the configured vendor session, wrapped in
// the reference-data cache when one is available.
func ProvideMarketDataSource(cfg *config.Config, logger *xlogger.Logger, c xcache.Service) (drepo.MarketDataSource, error) {
	var src drepo.MarketDataSource
	switch cfg.Source.Type {
	case "polygon":
		limiter := ratelimit.New(cfg.Source.Polygon.Burst, cfg.Source.Polygon.RateLimit)
		src = polygon.NewSource(cfg.Source.Polygon.APIKey, limiter, logger)
	case "csv":
		src = csvsource.NewSource(cfg.Source.CSV.Dir, logger)
	default:
		return nil, fmt.Errorf("unknown market data source %q", cfg.Source.Type)
	}
	if c == nil {
		return src, nil
	}
	return icache.NewCachedSource(src, c, cfg.Cache.TTL, logger), nil
}

func ProvideATMSeries(src drepo.MarketDataSource, policy usecase.ATMPolicy, logger *xlogger.Logger, m drepo.Metrics) *usecase.ATMSeries {
	return usecase.NewATMSeries(src, policy, logger, m)
}

func ProvideChainSnapshot(src drepo.MarketDataSource, policy usecase.ATMPolicy, logger *xlogger.Logger, m drepo.Metrics) *usecase.ChainSnapshot {
	return usecase.NewChainSnapshot(src, policy, logger, m)
}

func ProvideSerialRunner(series *usecase.ATMSeries, chain *usecase.ChainSnapshot) *usecase.SerialRunner {
	return usecase.NewSerialRunner(series, chain)
}

func sinkUses(cfg *config.Config, backend string) bool {
	return cfg.Sink.Type == backend || cfg.Sink.Type == usecase.SinkBoth
}

// ProvideClickHouseClient connects only for clickhouse sinks.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !sinkUses(cfg, usecase.SinkClickHouse) {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(cfg.ClickHouse.MaxOpenConns, cfg.ClickHouse.MaxIdleConns, 5*time.Minute),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSeriesStorage creates the series table on first use.
func ProvideSeriesStorage(ch *pkgch.Client, cfg *config.Config, logger *xlogger.Logger) (drepo.SeriesStorage, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseSeriesStore(ch, cfg.ClickHouse.Table, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer connects only for kafka sinks.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !sinkUses(cfg, usecase.SinkKafka) {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithTopic(cfg.Kafka.Topic),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.BatchSize, cfg.Kafka.BatchTimeout),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

func ProvideSeriesPublisher(producer *pkgkafka.Producer) drepo.SeriesPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSeriesPublisher(producer)
}

func ProvideSeriesProcessor(pub drepo.SeriesPublisher, store drepo.SeriesStorage, m drepo.Metrics, cfg *config.Config) *usecase.SeriesProcessor {
	return usecase.NewSeriesProcessor(pub, store, m, cfg.Sink.Type)
}

// ProvideRunStatusStore keeps run status in Redis so any instance can answer
// for a run; nil when the queue is disabled.
func ProvideRunStatusStore(cfg *config.Config, client *redis.Client) drepo.RunStatusStore {
	if !cfg.Queue.Enabled || client == nil {
		return nil
	}
	return internalrepo.NewRunStatusCache(xcache.NewRedisCacheFromClient(client, cfg.Redis.Prefix), cfg.Queue.StatusTTL)
}

// ProvideQueue registers the series job on a Redis queue; nil when disabled.
func ProvideQueue(
	cfg *config.Config,
	logger *xlogger.Logger,
	client *redis.Client,
	runner *usecase.SerialRunner,
	processor *usecase.SeriesProcessor,
	status drepo.RunStatusStore,
) *queue.RedisQueue {
	if !cfg.Queue.Enabled || client == nil || status == nil {
		return nil
	}
	q := queue.NewRedisQueue(logger, queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
		KeyPrefix:  cfg.Queue.KeyPrefix,
	}, client)
	q.RegisterJob(usecase.NewSeriesJob(runner, processor, status, logger))
	return q
}

func ProvideJobPublisher(q *queue.RedisQueue) queue.Publisher {
	if q == nil {
		return nil
	}
	return q
}

func ProvideSeriesHandler(
	logger *xlogger.Logger,
	runner *usecase.SerialRunner,
	jobs queue.Publisher,
	status drepo.RunStatusStore,
	store drepo.SeriesStorage,
) *api.SeriesEchoHandler {
	return api.NewSeriesEchoHandler(logger, runner, jobs, status, store)
}

func ProvideHTTPServer(
	cfg *config.Config,
	logger *xlogger.Logger,
	h *api.SeriesEchoHandler,
	client *redis.Client,
	store drepo.SeriesStorage,
) *xhttp.Server {
	srv := xhttp.NewServer(logger, []xhttp.Handler{h},
		xhttp.WithAddress(cfg.Server.Host, cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithCORS(cfg.Server.CORS),
	)
	if client != nil {
		srv.AddHealthCheck("redis", func(ctx context.Context) error { return client.Ping(ctx).Err() })
	}
	if store != nil {
		srv.AddHealthCheck("clickhouse", store.Health)
	}
	return srv
}

func ProvideApp(
	cfg *config.Config,
	logger *xlogger.Logger,
	srv *xhttp.Server,
	q *queue.RedisQueue,
	processor *usecase.SeriesProcessor,
	ch *pkgch.Client,
	client *redis.Client,
) *server.App {
	return server.New(cfg, logger, srv, q, processor, ch, client)
}

// CLI carries what the command-line runs need.
type CLI struct {
	Logger    *xlogger.Logger
	Runner    *usecase.SerialRunner
	Processor *usecase.SeriesProcessor
	ch        *pkgch.Client
	redis     *redis.Client
}

func ProvideCLI(
	logger *xlogger.Logger,
	runner *usecase.SerialRunner,
	processor *usecase.SeriesProcessor,
	ch *pkgch.Client,
	client *redis.Client,
) *CLI {
	return &CLI{Logger: logger, Runner: runner, Processor: processor, ch: ch, redis: client}
}

// Close flushes sinks and releases connections.
func (c *CLI) Close() {
	c.Processor.Close()
	if c.ch != nil {
		if err := c.ch.Close(); err != nil {
			c.Logger.Warn("clickhouse close", xlogger.Error(err))
		}
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
}
