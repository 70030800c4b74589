package usecase

import (
	"math"
	"sort"

	"OptRoll/internal/domain/models"

	"cloud.google.com/go/civil"
)

// NearestStrike returns the strike closest to ref. On an exact tie the lower
// strike wins.
func NearestStrike(ref float64, strikes []float64) (float64, bool) {
	if len(strikes) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), strikes...)
	sort.Float64s(sorted)

	best := sorted[0]
	bestDist := math.Abs(best - ref)
	for _, k := range sorted[1:] {
		if d := math.Abs(k - ref); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best, true
}

// CallPut holds the tickers found at one strike; an empty string means the
// leg is not listed.
type CallPut struct {
	Call       string
	Put        string
	Duplicates []string
}

// SplitCallPut picks the call and put among contracts listed at a single
// strike and expiry. The first contract seen for each side wins; later ones
// are reported in Duplicates.
func SplitCallPut(contracts []models.OptionContract) CallPut {
	var out CallPut
	for _, c := range contracts {
		switch {
		case c.IsCall() && out.Call == "":
			out.Call = c.Ticker
		case c.IsPut() && out.Put == "":
			out.Put = c.Ticker
		default:
			out.Duplicates = append(out.Duplicates, c.Ticker)
		}
	}
	return out
}

// ReferencePrice prefers settlement over last trade.
func ReferencePrice(settle, last *float64) (float64, bool) {
	if settle != nil {
		return *settle, true
	}
	if last != nil {
		return *last, true
	}
	return 0, false
}

// FilterStrikeWindow keeps contracts on expiry whose strike lies within
// pct of ref on either side, bounds inclusive.
func FilterStrikeWindow(contracts []models.OptionContract, expiry civil.Date, ref, pct float64) []models.OptionContract {
	lo, hi := ref*(1-pct), ref*(1+pct)
	out := make([]models.OptionContract, 0)
	for _, c := range contracts {
		if c.Expiry != expiry {
			continue
		}
		if c.Strike >= lo && c.Strike <= hi {
			out = append(out, c)
		}
	}
	return out
}

// ContractsAtStrike keeps contracts listed at exactly strike.
func ContractsAtStrike(contracts []models.OptionContract, strike float64) []models.OptionContract {
	out := make([]models.OptionContract, 0, 2)
	for _, c := range contracts {
		if c.Strike == strike {
			out = append(out, c)
		}
	}
	return out
}

func strikesOf(contracts []models.OptionContract) []float64 {
	seen := make(map[float64]struct{}, len(contracts))
	out := make([]float64, 0, len(contracts))
	for _, c := range contracts {
		if _, ok := seen[c.Strike]; ok {
			continue
		}
		seen[c.Strike] = struct{}{}
		out = append(out, c.Strike)
	}
	return out
}
