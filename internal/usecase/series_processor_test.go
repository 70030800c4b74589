package usecase

import (
	"context"
	"errors"
	"testing"

	"OptRoll/internal/domain/models"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSink struct {
	published [][]models.ATMOptionDataPoint
	stored    [][]models.ATMOptionDataPoint
	fail      error
	closed    int
}

func (s *memSink) PublishSeries(_ context.Context, pts []models.ATMOptionDataPoint) error {
	if s.fail != nil {
		return s.fail
	}
	s.published = append(s.published, pts)
	return nil
}

func (s *memSink) StoreSeries(_ context.Context, pts []models.ATMOptionDataPoint) error {
	if s.fail != nil {
		return s.fail
	}
	s.stored = append(s.stored, pts)
	return nil
}

func (s *memSink) Init(context.Context) error   { return nil }
func (s *memSink) Health(context.Context) error { return nil }
func (s *memSink) Close() error                 { s.closed++; return nil }
func (s *memSink) Query(context.Context, string, civil.Date, civil.Date) ([]models.ATMOptionDataPoint, error) {
	return nil, nil
}

func TestSeriesProcessorRoutesByBackend(t *testing.T) {
	pts := []models.ATMOptionDataPoint{{Date: date(2024, 11, 1), UnderlyingTicker: "SPY"}}

	sink := &memSink{}
	require.NoError(t, NewSeriesProcessor(sink, sink, nil, "kafka").Process(context.Background(), "SPY", pts))
	assert.Len(t, sink.published, 1)
	assert.Empty(t, sink.stored)

	sink = &memSink{}
	require.NoError(t, NewSeriesProcessor(sink, sink, nil, "both").Process(context.Background(), "SPY", pts))
	assert.Len(t, sink.published, 1)
	assert.Len(t, sink.stored, 1)

	sink = &memSink{}
	require.NoError(t, NewSeriesProcessor(sink, sink, nil, "").Process(context.Background(), "SPY", pts))
	assert.Empty(t, sink.published)
}

func TestSeriesProcessorErrors(t *testing.T) {
	pts := []models.ATMOptionDataPoint{{Date: date(2024, 11, 1), UnderlyingTicker: "SPY"}}

	err := NewSeriesProcessor(nil, nil, nil, "carrier-pigeon").Process(context.Background(), "SPY", pts)
	assert.ErrorContains(t, err, "unknown backend")

	err = NewSeriesProcessor(nil, nil, nil, "clickhouse").Process(context.Background(), "SPY", pts)
	assert.ErrorContains(t, err, "no storage configured")

	boom := errors.New("broker down")
	sink := &memSink{fail: boom}
	err = NewSeriesProcessor(sink, sink, nil, "kafka").Process(context.Background(), "SPY", pts)
	assert.ErrorIs(t, err, boom)

	p := NewSeriesProcessor(sink, sink, nil, "kafka")
	p.Close()
	assert.Equal(t, 2, sink.closed)
}
