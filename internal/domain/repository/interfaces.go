package repository

import (
	"context"
	"errors"

	"OptRoll/internal/domain/models"

	"cloud.google.com/go/civil"
)

// MarketDataSource is a request/response market-data session. Implementations
// are stateful and not safe for concurrent use; Open must precede any fetch
// and Close releases the session.
type MarketDataSource interface {
	Open(ctx context.Context) error
	Close() error
	// FetchReferenceFields returns one record per resolvable security. A nil
	// asOf means current data.
	FetchReferenceFields(ctx context.Context, securities []string, fields []models.FieldID, asOf *civil.Date) models.Response[[]models.ReferenceRecord]
	FetchHistoricalFields(ctx context.Context, securities []string, fields []models.FieldID, start, end civil.Date, periodicity models.Periodicity) models.Response[[]models.HistoricalRecord]
}

type SeriesPublisher interface {
	PublishSeries(ctx context.Context, points []models.ATMOptionDataPoint) error
	Close() error
}

type SeriesStorage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	StoreSeries(ctx context.Context, points []models.ATMOptionDataPoint) error
	Query(ctx context.Context, underlying string, from, to civil.Date) ([]models.ATMOptionDataPoint, error)
	Health(ctx context.Context) error // ping
	Close() error
}

type Metrics interface {
	RecordRun(underlying string, days int, errors int)
	RecordDay(underlying, outcome string)
	RecordError(kind string)
	RecordRoll(underlying string)
	RecordLatency(op string, seconds float64)
	RecordPointsSent(backend, underlying string, n int)
}

type RunStatusStore interface {
	SaveRun(ctx context.Context, status models.RunStatus) error
	// LoadRun returns ErrRunNotFound for unknown IDs.
	LoadRun(ctx context.Context, runID string) (models.RunStatus, error)
}

var ErrRunNotFound = errors.New("run not found")
