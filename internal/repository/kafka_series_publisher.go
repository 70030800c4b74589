package repository

import (
	"context"

	"OptRoll/internal/domain/models"
	domrepo "OptRoll/internal/domain/repository"
	"OptRoll/internal/report"
	pkgkafka "OptRoll/pkg/kafka"
)

type batchProducer interface {
	PublishBatch(ctx context.Context, messages []pkgkafka.Message) error
	Close() error
}

// KafkaSeriesPublisher emits one flattened row per point, keyed by
// underlying so a consumer sees each series in date order.
type KafkaSeriesPublisher struct {
	producer batchProducer
}

func NewKafkaSeriesPublisher(producer *pkgkafka.Producer) *KafkaSeriesPublisher {
	return &KafkaSeriesPublisher{producer: producer}
}

var _ domrepo.SeriesPublisher = (*KafkaSeriesPublisher)(nil)

func (p *KafkaSeriesPublisher) PublishSeries(ctx context.Context, points []models.ATMOptionDataPoint) error {
	if len(points) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(points))
	for i, pt := range points {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(pt.UnderlyingTicker),
			Value: report.FlattenPoint(pt),
		}
	}
	return p.producer.PublishBatch(ctx, msgs)
}

func (p *KafkaSeriesPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
