package usecase

import (
	"context"
	"testing"

	"OptRoll/internal/domain/models"
	xlogger "OptRoll/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainSnapshotNearestExpirySorted(t *testing.T) {
	src := spyMarket()
	asOf := date(2024, 11, 1)
	priceEveryDay(src, asOf, asOf, 100)
	snap := NewChainSnapshot(src, DefaultATMPolicy(), xlogger.NewNop(), nil)

	resp, err := snap.Fetch(context.Background(), ChainRequest{
		Underlying: "SPY",
		AsOf:       &asOf,
		Filter:     models.ChainFilter{StrikeMin: models.Float(100)},
	})
	require.NoError(t, err)
	require.True(t, resp.Success())
	require.Len(t, resp.Data, 6)

	for _, md := range resp.Data {
		assert.Equal(t, date(2024, 11, 15), md.Contract.Expiry)
		assert.Equal(t, asOf, md.AsOfDate)
	}
	assert.Equal(t, models.OptionTypeCall, resp.Data[0].Contract.OptionType)
	assert.Equal(t, 100.0, resp.Data[0].Contract.Strike)
	assert.Equal(t, 110.0, resp.Data[2].Contract.Strike)
	assert.Equal(t, models.OptionTypePut, resp.Data[3].Contract.OptionType)
	assert.Equal(t, 100.0, resp.Data[3].Contract.Strike)
	assert.Equal(t, 1, src.closed)
}

func TestChainSnapshotExplicitExpiryAndTypes(t *testing.T) {
	src := spyMarket()
	asOf := date(2024, 11, 1)
	priceEveryDay(src, asOf, asOf, 100)
	snap := NewChainSnapshot(src, DefaultATMPolicy(), xlogger.NewNop(), nil)
	dec := date(2024, 12, 20)

	resp, err := snap.Fetch(context.Background(), ChainRequest{
		Underlying: "SPY",
		AsOf:       &asOf,
		Expiry:     &dec,
		Filter:     models.ChainFilter{OptionTypes: []models.OptionType{models.OptionTypePut}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Data, 4)
	for _, md := range resp.Data {
		assert.True(t, md.Contract.IsPut())
		assert.Equal(t, dec, md.Contract.Expiry)
	}

	missing := date(2025, 1, 17)
	resp, err = snap.Fetch(context.Background(), ChainRequest{Underlying: "SPY", AsOf: &asOf, Expiry: &missing})
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
}

func TestChainSnapshotHistory(t *testing.T) {
	src := newFakeSource()
	for i := 0; i < 5; i++ {
		d := date(2024, 11, 1).AddDays(i)
		for _, sec := range []string{"B", "A"} {
			src.history[sec] = append(src.history[sec], models.HistoricalRecord{
				Security: sec, Date: d, Fields: models.FieldValues{models.FieldLast: float64(i)},
			})
		}
	}
	policy := DefaultATMPolicy()
	policy.BatchSize = 1
	snap := NewChainSnapshot(src, policy, xlogger.NewNop(), nil)

	resp, err := snap.History(context.Background(), HistoryRequest{
		Tickers: []string{"B", "A"},
		Start:   date(2024, 11, 2),
		End:     date(2024, 11, 3),
	})
	require.NoError(t, err)
	require.Len(t, resp.Data, 4)
	assert.Equal(t, "A", resp.Data[0].Security)
	assert.Equal(t, date(2024, 11, 2), resp.Data[0].Date)
	assert.Equal(t, "B", resp.Data[3].Security)

	_, err = snap.History(context.Background(), HistoryRequest{Tickers: []string{"A"}, Start: date(2024, 11, 3), End: date(2024, 11, 2)})
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}
