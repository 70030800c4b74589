package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"OptRoll/internal/domain/models"
	drepo "OptRoll/internal/domain/repository"
)

// Sink backends for finished series.
const (
	SinkNone       = "none"
	SinkKafka      = "kafka"
	SinkClickHouse = "clickhouse"
	SinkBoth       = "both"
)

// SeriesProcessor routes a finished series to the configured backend.
type SeriesProcessor struct {
	pub     drepo.SeriesPublisher
	store   drepo.SeriesStorage
	metrics drepo.Metrics
	backend string
}

func NewSeriesProcessor(pub drepo.SeriesPublisher, store drepo.SeriesStorage, metrics drepo.Metrics, backend string) *SeriesProcessor {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if backend == "" {
		backend = SinkNone
	}
	return &SeriesProcessor{pub: pub, store: store, metrics: metrics, backend: strings.ToLower(backend)}
}

func (p *SeriesProcessor) Backend() string { return p.backend }

// Process delivers points to every backend the processor is configured for.
// Placeholder points are delivered too so consumers see every calendar day.
func (p *SeriesProcessor) Process(ctx context.Context, underlying string, points []models.ATMOptionDataPoint) error {
	switch p.backend {
	case SinkNone:
		return nil
	case SinkKafka, SinkClickHouse, SinkBoth:
	default:
		return fmt.Errorf("unknown backend: %s", p.backend)
	}
	if len(points) == 0 {
		return nil
	}

	start := time.Now()
	var errs []error
	if p.backend == SinkKafka || p.backend == SinkBoth {
		errs = append(errs, p.deliver(ctx, SinkKafka, underlying, points))
	}
	if p.backend == SinkClickHouse || p.backend == SinkBoth {
		errs = append(errs, p.deliver(ctx, SinkClickHouse, underlying, points))
	}

	p.metrics.RecordLatency("process_series", time.Since(start).Seconds())
	return errors.Join(errs...)
}

func (p *SeriesProcessor) deliver(ctx context.Context, backend, underlying string, points []models.ATMOptionDataPoint) error {
	var err error
	switch backend {
	case SinkKafka:
		if p.pub == nil {
			return fmt.Errorf("kafka backend selected but no publisher configured")
		}
		err = p.pub.PublishSeries(ctx, points)
	case SinkClickHouse:
		if p.store == nil {
			return fmt.Errorf("clickhouse backend selected but no storage configured")
		}
		err = p.store.StoreSeries(ctx, points)
	}
	if err != nil {
		p.metrics.RecordError("process_" + backend)
		return fmt.Errorf("%s: %w", backend, err)
	}
	p.metrics.RecordPointsSent(backend, underlying, len(points))
	return nil
}

// Close closes underlying resources if available.
func (p *SeriesProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
