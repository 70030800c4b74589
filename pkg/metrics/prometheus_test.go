package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordRun("SPY", 5, 1)
	r.RecordRun("SPY", 5, 0)
	r.RecordDay("SPY", "ok")
	r.RecordDay("SPY", "ok")
	r.RecordRoll("SPY")
	r.RecordPointsSent("kafka", "SPY", 5)
	r.RecordError("DateFetchError")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("SPY", "partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("SPY", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.daysTotal.WithLabelValues("SPY", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rollsTotal.WithLabelValues("SPY")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.pointsSent.WithLabelValues("kafka", "SPY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("DateFetchError")))
}

func TestRecordersOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
