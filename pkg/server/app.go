package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"OptRoll/internal/usecase"
	pkgch "OptRoll/pkg/clickhouse"
	"OptRoll/pkg/config"
	xhttp "OptRoll/pkg/http"
	xlogger "OptRoll/pkg/logger"
	"OptRoll/pkg/queue"

	"github.com/redis/go-redis/v9"
)

// App owns the service lifecycle: HTTP API, job workers and sink
// connections. queue, ch and redis may be nil.
type App struct {
	cfg       *config.Config
	logger    *xlogger.Logger
	http      *xhttp.Server
	queue     *queue.RedisQueue
	processor *usecase.SeriesProcessor
	ch        *pkgch.Client
	redis     *redis.Client
}

func New(
	cfg *config.Config,
	logger *xlogger.Logger,
	srv *xhttp.Server,
	q *queue.RedisQueue,
	processor *usecase.SeriesProcessor,
	ch *pkgch.Client,
	client *redis.Client,
) *App {
	return &App{
		cfg:       cfg,
		logger:    logger,
		http:      srv,
		queue:     q,
		processor: processor,
		ch:        ch,
		redis:     client,
	}
}

// Run starts every component and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return err
		}
	}
	if err := a.http.Start(); err != nil {
		a.shutdown()
		return err
	}
	a.logger.Info("optroll started",
		xlogger.String("env", a.cfg.App.Environment),
		xlogger.String("source", a.cfg.Source.Type),
		xlogger.String("sink", a.processor.Backend()),
		xlogger.Bool("queue", a.queue != nil),
	)

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	a.shutdown()
	return nil
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.http.ShutdownTimeout())
	defer cancel()

	if err := a.http.Stop(ctx); err != nil {
		a.logger.Error("http shutdown", xlogger.Error(err))
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.logger.Warn("queue shutdown", xlogger.Error(err))
		}
	}

	a.processor.Close()
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Warn("clickhouse close", xlogger.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close", xlogger.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
}
