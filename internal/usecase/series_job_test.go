package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"OptRoll/internal/domain/models"
	drepo "OptRoll/internal/domain/repository"
	xlogger "OptRoll/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRuns map[string]models.RunStatus

func (m memRuns) SaveRun(_ context.Context, s models.RunStatus) error { m[s.RunID] = s; return nil }
func (m memRuns) LoadRun(_ context.Context, id string) (models.RunStatus, error) {
	s, ok := m[id]
	if !ok {
		return models.RunStatus{}, drepo.ErrRunNotFound
	}
	return s, nil
}

func newJob(src *fakeSource, sink *memSink, runs memRuns) *SeriesJob {
	series := NewATMSeries(src, DefaultATMPolicy(), xlogger.NewNop(), nil)
	chain := NewChainSnapshot(src, DefaultATMPolicy(), xlogger.NewNop(), nil)
	return NewSeriesJob(NewSerialRunner(series, chain), NewSeriesProcessor(sink, sink, nil, SinkKafka), runs, xlogger.NewNop())
}

func TestSeriesJobRunsAndDelivers(t *testing.T) {
	src := spyMarket()
	priceEveryDay(src, date(2024, 11, 4), date(2024, 11, 6), 101)
	sink := &memSink{}
	runs := memRuns{}

	payload := json.RawMessage(`{"run_id":"r1","underlying":"SPY","start":"2024-11-04","end":"2024-11-06"}`)
	require.NoError(t, newJob(src, sink, runs).Handle(context.Background(), payload))

	require.Len(t, sink.published, 1)
	assert.Len(t, sink.published[0], 3)
	st := runs["r1"]
	assert.Equal(t, models.RunDone, st.State)
	assert.Equal(t, 3, st.Points)
	assert.Zero(t, st.Errors)
}

func TestSeriesJobRecordsInvalidRange(t *testing.T) {
	runs := memRuns{}
	payload := SeriesJobPayload{RunID: "r2", Underlying: "SPY", Start: "2024-11-06", End: "2024-11-04"}

	err := newJob(spyMarket(), &memSink{}, runs).Handle(context.Background(), payload)
	assert.ErrorIs(t, err, ErrInvalidDateRange)
	assert.Equal(t, models.RunFailed, runs["r2"].State)
	assert.NotEmpty(t, runs["r2"].Message)
}

func TestSeriesJobPayloadDates(t *testing.T) {
	_, err := SeriesJobPayload{Underlying: "SPY", Start: "tomorrow", End: "2024-11-04"}.Request()
	assert.Error(t, err)

	req, err := SeriesJobPayload{Underlying: "SPY", Start: "2024-11-01", End: "2024-11-04", AsOf: "2024-10-31"}.Request()
	require.NoError(t, err)
	require.NotNil(t, req.AsOf)
	assert.Equal(t, date(2024, 10, 31), *req.AsOf)
}
