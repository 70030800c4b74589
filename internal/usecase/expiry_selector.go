package usecase

import (
	"sort"
	"time"

	"OptRoll/internal/domain/models"

	"cloud.google.com/go/civil"
)

// ExpirySelector tracks the expiry a series is following and decides when to
// move to the next one.
type ExpirySelector struct {
	minDays     int
	maxDays     int
	rollDays    int
	monthlyOnly bool
	current     *civil.Date
}

func NewExpirySelector(policy ATMPolicy) *ExpirySelector {
	return &ExpirySelector{
		minDays:     policy.MinDaysToExpiry,
		maxDays:     policy.MaxDaysToExpiry,
		rollDays:    policy.RollDaysBeforeExpiry,
		monthlyOnly: policy.MonthlyExpiryOnly,
	}
}

// Current is the tracked expiry, nil before the first selection.
func (s *ExpirySelector) Current() *civil.Date {
	if s.current == nil {
		return nil
	}
	d := *s.current
	return &d
}

// SelectExpiry returns the earliest expiry among contracts whose distance
// from target lies in [min, max] days, restricted to monthly expiries when
// configured.
func (s *ExpirySelector) SelectExpiry(contracts []models.OptionContract, target civil.Date) (civil.Date, bool) {
	seen := make(map[civil.Date]struct{})
	expiries := make([]civil.Date, 0)
	for _, c := range contracts {
		if _, ok := seen[c.Expiry]; ok {
			continue
		}
		seen[c.Expiry] = struct{}{}
		if s.monthlyOnly && !IsMonthlyExpiry(c.Expiry) {
			continue
		}
		expiries = append(expiries, c.Expiry)
	}
	sort.Slice(expiries, func(i, j int) bool { return expiries[i].Before(expiries[j]) })

	for _, exp := range expiries {
		days := exp.DaysSince(target)
		if days >= s.minDays && days <= s.maxDays {
			return exp, true
		}
	}
	return civil.Date{}, false
}

// ShouldRoll reports whether the tracked expiry must be reselected on target.
func (s *ExpirySelector) ShouldRoll(target civil.Date) bool {
	if s.current == nil {
		return true
	}
	return s.current.DaysSince(target) < s.rollDays
}

// Advance applies the roll rule for target and returns the expiry to use.
// rolled is true when a new selection replaced a previous, different expiry.
// A failed reselection clears the tracked expiry so the next day retries.
func (s *ExpirySelector) Advance(contracts []models.OptionContract, target civil.Date) (expiry civil.Date, ok bool, rolled bool) {
	if !s.ShouldRoll(target) {
		return *s.current, true, false
	}
	prev := s.current
	next, ok := s.SelectExpiry(contracts, target)
	if !ok {
		s.current = nil
		return civil.Date{}, false, false
	}
	s.current = &next
	return next, true, prev != nil && *prev != next
}

// IsMonthlyExpiry reports whether d is the third Friday of its month.
func IsMonthlyExpiry(d civil.Date) bool {
	first := civil.Date{Year: d.Year, Month: d.Month, Day: 1}
	offset := (int(time.Friday) - int(first.In(time.UTC).Weekday()) + 7) % 7
	third := first.AddDays(offset + 14)
	return third == d
}
