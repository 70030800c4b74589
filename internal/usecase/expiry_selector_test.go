package usecase

import (
	"testing"

	"OptRoll/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMonthlyExpiry(t *testing.T) {
	assert.True(t, IsMonthlyExpiry(date(2024, 11, 15)))
	assert.False(t, IsMonthlyExpiry(date(2024, 11, 8)), "second Friday")
	assert.False(t, IsMonthlyExpiry(date(2024, 11, 16)), "Saturday")
	assert.True(t, IsMonthlyExpiry(date(2024, 12, 20)))
	assert.True(t, IsMonthlyExpiry(date(2025, 8, 15)), "month starting on a Friday")
	assert.True(t, IsMonthlyExpiry(date(2024, 6, 21)), "month starting on a Saturday")
}

func TestShouldRoll(t *testing.T) {
	s := NewExpirySelector(DefaultATMPolicy())
	target := date(2024, 11, 11)
	assert.True(t, s.ShouldRoll(target), "nothing tracked yet")

	cur := target.AddDays(4)
	s.current = &cur
	assert.True(t, s.ShouldRoll(target))

	cur = target.AddDays(6)
	s.current = &cur
	assert.False(t, s.ShouldRoll(target))

	cur = target.AddDays(5)
	s.current = &cur
	assert.False(t, s.ShouldRoll(target), "boundary is exclusive")
}

func contractsExpiring(dates ...string) []models.OptionContract {
	out := make([]models.OptionContract, 0, len(dates))
	for _, d := range dates {
		exp, _ := models.ParseVendorDate(d)
		out = append(out, models.OptionContract{Ticker: d, Strike: 100, Expiry: exp, OptionType: models.OptionTypeCall})
	}
	return out
}

func TestSelectExpiry(t *testing.T) {
	contracts := contractsExpiring("2024-11-08", "2024-11-15", "2024-11-22", "2024-12-20", "2025-03-21")
	target := date(2024, 11, 1)

	monthly := NewExpirySelector(DefaultATMPolicy())
	got, ok := monthly.SelectExpiry(contracts, target)
	require.True(t, ok)
	assert.Equal(t, date(2024, 11, 15), got)

	weekly := DefaultATMPolicy()
	weekly.MonthlyExpiryOnly = false
	got, ok = NewExpirySelector(weekly).SelectExpiry(contracts, target)
	require.True(t, ok)
	assert.Equal(t, date(2024, 11, 8), got, "7 days out is inside the window")

	got, ok = monthly.SelectExpiry(contracts, date(2024, 11, 10))
	require.True(t, ok)
	assert.Equal(t, date(2024, 12, 20), got, "Nov 15 is only 5 days out")

	_, ok = monthly.SelectExpiry(contracts, date(2025, 3, 20))
	assert.False(t, ok)
}

func TestAdvanceRollsAndClears(t *testing.T) {
	s := NewExpirySelector(DefaultATMPolicy())
	contracts := contractsExpiring("2024-11-15", "2024-12-20")

	exp, ok, rolled := s.Advance(contracts, date(2024, 11, 10))
	require.True(t, ok)
	assert.False(t, rolled, "first selection is not a roll")
	assert.Equal(t, date(2024, 12, 20), exp)

	s = NewExpirySelector(DefaultATMPolicy())
	exp, _, _ = s.Advance(contracts, date(2024, 11, 1))
	assert.Equal(t, date(2024, 11, 15), exp)

	exp, ok, rolled = s.Advance(contracts, date(2024, 11, 10))
	require.True(t, ok)
	assert.False(t, rolled)
	assert.Equal(t, date(2024, 11, 15), exp)

	exp, ok, rolled = s.Advance(contracts, date(2024, 11, 11))
	require.True(t, ok)
	assert.True(t, rolled)
	assert.Equal(t, date(2024, 12, 20), exp)

	_, ok, _ = s.Advance(contracts, date(2024, 12, 18))
	assert.False(t, ok)
	assert.Nil(t, s.Current(), "failed reselection clears the tracked expiry")
}
