package repository

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"OptRoll/internal/domain/models"
	domrepo "OptRoll/internal/domain/repository"
	"OptRoll/internal/report"
	xcache "OptRoll/pkg/cache"
	pkgkafka "OptRoll/pkg/kafka"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func point() models.ATMOptionDataPoint {
	d := civil.Date{Year: 2024, Month: 11, Day: 4}
	exp := civil.Date{Year: 2024, Month: 11, Day: 15}
	return models.ATMOptionDataPoint{
		Date:             d,
		UnderlyingTicker: "SPY",
		OptionExpiry:     &exp,
		UnderlyingSettle: models.Float(101),
		Put: &models.OptionMarketData{
			Contract: models.OptionContract{Ticker: "P100", Strike: 100, Expiry: exp, OptionType: models.OptionTypePut, Underlying: "SPY"},
			AsOfDate: d,
			Settle:   models.Float(1.2),
			Vega:     models.Float(0.08),
		},
	}
}

func TestRowArgsMatchColumns(t *testing.T) {
	cols := seriesColumns()
	args := rowArgs(point())
	require.Len(t, args, len(cols))

	idx := func(name string) int {
		for i, c := range cols {
			if c == name {
				return i
			}
		}
		t.Fatalf("missing column %s", name)
		return -1
	}
	assert.Equal(t, "SPY", args[idx("underlying")])
	assert.Equal(t, "", args[idx("call_ticker")])
	assert.Nil(t, args[idx("call_strike")])
	assert.Equal(t, "P100", args[idx("put_ticker")])
	assert.Equal(t, 100.0, *args[idx("put_strike")].(*float64))
	assert.Equal(t, 0.08, *args[idx("put_vega")].(*float64))
}

func TestCreateTableCoversColumns(t *testing.T) {
	ddl := createTableSQL("optroll.atm_series")
	for _, c := range seriesColumns() {
		assert.Contains(t, ddl, " "+c+" ", c)
	}
	assert.Contains(t, ddl, "ReplacingMergeTree")
}

func TestScannedRowRebuildsPoint(t *testing.T) {
	want := point()
	var r scannedRow
	dest := r.dest()
	require.Len(t, dest, len(seriesColumns()))

	// Feed the inserted values through the scan targets.
	args := rowArgs(want)
	for i, a := range args {
		switch d := dest[i].(type) {
		case *time.Time:
			*d = a.(time.Time)
		case **time.Time:
			if a != nil {
				v := a.(time.Time)
				*d = &v
			}
		case *string:
			*d = a.(string)
		case **float64:
			*d = a.(*float64)
		}
	}

	got := r.point()
	assert.Equal(t, want.Date, got.Date)
	assert.Equal(t, *want.OptionExpiry, *got.OptionExpiry)
	assert.Nil(t, got.Call)
	require.NotNil(t, got.Put)
	assert.Equal(t, want.Put.Contract, got.Put.Contract)
	assert.Equal(t, 1.2, *got.Put.Settle)
	assert.Equal(t, report.FlattenPoint(want), report.FlattenPoint(got))
}

type fakeProducer struct {
	msgs   []pkgkafka.Message
	closed bool
}

func (f *fakeProducer) PublishBatch(_ context.Context, m []pkgkafka.Message) error {
	f.msgs = append(f.msgs, m...)
	return nil
}

func (f *fakeProducer) Close() error { f.closed = true; return nil }

func TestKafkaSeriesPublisher(t *testing.T) {
	fp := &fakeProducer{}
	pub := &KafkaSeriesPublisher{producer: fp}

	require.NoError(t, pub.PublishSeries(context.Background(), nil))
	require.NoError(t, pub.PublishSeries(context.Background(), []models.ATMOptionDataPoint{point()}))
	require.Len(t, fp.msgs, 1)
	assert.Equal(t, "SPY", string(fp.msgs[0].Key))

	raw, err := json.Marshal(fp.msgs[0].Value)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `"put_ticker":"P100"`))

	require.NoError(t, pub.Close())
	assert.True(t, fp.closed)
}

func TestRunStatusCache(t *testing.T) {
	ctx := context.Background()
	store := NewRunStatusCache(xcache.NewMemoryCache(), time.Hour)

	_, err := store.LoadRun(ctx, "missing")
	assert.ErrorIs(t, err, domrepo.ErrRunNotFound)

	st := models.RunStatus{RunID: "r1", Underlying: "SPY", State: models.RunDone, Points: 5,
		ErrorKinds: map[models.ErrorKind]int{models.ErrKindDateFetch: 1}}
	require.NoError(t, store.SaveRun(ctx, st))

	got, err := store.LoadRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.RunDone, got.State)
	assert.Equal(t, 1, got.ErrorKinds[models.ErrKindDateFetch])

	assert.Error(t, store.SaveRun(ctx, models.RunStatus{}))
}
