package models

import (
	"strings"

	"cloud.google.com/go/civil"
)

type OptionType string

const (
	OptionTypeCall OptionType = "CALL"
	OptionTypePut  OptionType = "PUT"
)

// ParseOptionType maps a vendor put/call flag ("C", "Call", "PUT", ...) to an
// OptionType. A flag naming both sides or neither is rejected.
func ParseOptionType(raw string) (OptionType, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	hasC := strings.Contains(s, "C")
	hasP := strings.Contains(s, "P")
	switch {
	case hasC && !hasP:
		return OptionTypeCall, true
	case hasP && !hasC:
		return OptionTypePut, true
	default:
		return "", false
	}
}

// Short returns the single-letter form used in vendor tickers.
func (t OptionType) Short() string {
	if t == OptionTypePut {
		return "P"
	}
	return "C"
}

// OptionContract is a listed option resolved from reference data. Values are
// never mutated after resolution.
type OptionContract struct {
	Ticker     string     `json:"ticker"`
	Strike     float64    `json:"strike"`
	Expiry     civil.Date `json:"expiry"`
	OptionType OptionType `json:"option_type"`
	Underlying string     `json:"underlying"`
}

func (c OptionContract) IsCall() bool { return c.OptionType == OptionTypeCall }
func (c OptionContract) IsPut() bool  { return c.OptionType == OptionTypePut }

// OptionMarketData is one contract's market snapshot on AsOfDate.
type OptionMarketData struct {
	Contract     OptionContract `json:"contract"`
	AsOfDate     civil.Date     `json:"as_of_date"`
	Settle       *float64       `json:"settle,omitempty"`
	Last         *float64       `json:"last,omitempty"`
	Bid          *float64       `json:"bid,omitempty"`
	Ask          *float64       `json:"ask,omitempty"`
	Volume       *float64       `json:"volume,omitempty"`
	OpenInterest *float64       `json:"open_interest,omitempty"`
	ImpliedVol   *float64       `json:"implied_vol,omitempty"`
	Delta        *float64       `json:"delta,omitempty"`
	Gamma        *float64       `json:"gamma,omitempty"`
	Theta        *float64       `json:"theta,omitempty"`
	Vega         *float64       `json:"vega,omitempty"`
	// Unmapped keeps vendor fields with no named slot above.
	Unmapped map[FieldID]any `json:"unmapped,omitempty"`
}

func (m OptionMarketData) MidPrice() *float64 { return Mid(m.Bid, m.Ask) }

// Mid is the bid/ask average, present only when both sides are.
func Mid(bid, ask *float64) *float64 {
	if bid == nil || ask == nil {
		return nil
	}
	v := (*bid + *ask) / 2
	return &v
}

// ATMOptionDataPoint is one calendar day of the rolled ATM series. A point
// with every optional field absent marks a day with no obtainable data.
type ATMOptionDataPoint struct {
	Date             civil.Date        `json:"date"`
	UnderlyingTicker string            `json:"underlying_ticker"`
	OptionExpiry     *civil.Date       `json:"option_expiry,omitempty"`
	UnderlyingSettle *float64          `json:"underlying_settle,omitempty"`
	UnderlyingLast   *float64          `json:"underlying_last,omitempty"`
	UnderlyingBid    *float64          `json:"underlying_bid,omitempty"`
	UnderlyingAsk    *float64          `json:"underlying_ask,omitempty"`
	Call             *OptionMarketData `json:"call,omitempty"`
	Put              *OptionMarketData `json:"put,omitempty"`
}

func (p ATMOptionDataPoint) UnderlyingMid() *float64 {
	return Mid(p.UnderlyingBid, p.UnderlyingAsk)
}

// ATMStrike is taken from the call leg, then the put leg.
func (p ATMOptionDataPoint) ATMStrike() *float64 {
	switch {
	case p.Call != nil:
		v := p.Call.Contract.Strike
		return &v
	case p.Put != nil:
		v := p.Put.Contract.Strike
		return &v
	}
	return nil
}

func (p ATMOptionDataPoint) DaysToExpiry() (int, bool) {
	if p.OptionExpiry == nil {
		return 0, false
	}
	return p.OptionExpiry.DaysSince(p.Date), true
}

// IsEmpty reports whether the point carries nothing beyond date and underlying.
func (p ATMOptionDataPoint) IsEmpty() bool {
	return p.OptionExpiry == nil && p.UnderlyingSettle == nil && p.UnderlyingLast == nil &&
		p.UnderlyingBid == nil && p.UnderlyingAsk == nil && p.Call == nil && p.Put == nil
}

// ChainFilter narrows an option chain snapshot. Zero values disable a bound.
type ChainFilter struct {
	ExpiryStart *civil.Date
	ExpiryEnd   *civil.Date
	StrikeMin   *float64
	StrikeMax   *float64
	OptionTypes []OptionType
}

func (f ChainFilter) Matches(c OptionContract) bool {
	if f.ExpiryStart != nil && c.Expiry.Before(*f.ExpiryStart) {
		return false
	}
	if f.ExpiryEnd != nil && c.Expiry.After(*f.ExpiryEnd) {
		return false
	}
	if f.StrikeMin != nil && c.Strike < *f.StrikeMin {
		return false
	}
	if f.StrikeMax != nil && c.Strike > *f.StrikeMax {
		return false
	}
	if len(f.OptionTypes) > 0 {
		for _, t := range f.OptionTypes {
			if t == c.OptionType {
				return true
			}
		}
		return false
	}
	return true
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
