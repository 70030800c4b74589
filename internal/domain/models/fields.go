package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// FieldID names a vendor data field.
type FieldID string

const (
	FieldSettle       FieldID = "PX_SETTLE"
	FieldLast         FieldID = "PX_LAST"
	FieldBid          FieldID = "PX_BID"
	FieldAsk          FieldID = "PX_ASK"
	FieldOpen         FieldID = "PX_OPEN"
	FieldHigh         FieldID = "PX_HIGH"
	FieldLow          FieldID = "PX_LOW"
	FieldVolume       FieldID = "VOLUME"
	FieldOpenInterest FieldID = "OPEN_INT"
	FieldImpliedVol   FieldID = "IVOL_MID"
	FieldDelta        FieldID = "OPT_DELTA"
	FieldGamma        FieldID = "OPT_GAMMA"
	FieldTheta        FieldID = "OPT_THETA"
	FieldVega         FieldID = "OPT_VEGA"
	FieldStrike       FieldID = "OPT_STRIKE_PX"
	FieldPutCall      FieldID = "OPT_PUT_CALL"
	FieldExpiry       FieldID = "OPT_EXPIRE_DT"
	FieldUnderlying   FieldID = "OPT_UNDL_TICKER"
	FieldChain        FieldID = "OPT_CHAIN"
)

var (
	UnderlyingPriceFields = []FieldID{FieldSettle, FieldLast, FieldBid, FieldAsk}
	ContractFields        = []FieldID{FieldStrike, FieldPutCall, FieldExpiry, FieldUnderlying}
	OptionMarketFields    = []FieldID{
		FieldSettle, FieldLast, FieldBid, FieldAsk, FieldVolume, FieldOpenInterest,
		FieldImpliedVol, FieldDelta, FieldGamma, FieldTheta, FieldVega,
	}
)

// StaticFields do not change for a security once it is listed.
func IsStaticField(f FieldID) bool {
	switch f {
	case FieldChain, FieldStrike, FieldPutCall, FieldExpiry, FieldUnderlying:
		return true
	}
	return false
}

type Periodicity string

const (
	PeriodicityDaily        Periodicity = "DAILY"
	PeriodicityWeekly       Periodicity = "WEEKLY"
	PeriodicityMonthly      Periodicity = "MONTHLY"
	PeriodicityQuarterly    Periodicity = "QUARTERLY"
	PeriodicitySemiAnnually Periodicity = "SEMI_ANNUALLY"
	PeriodicityYearly       Periodicity = "YEARLY"
)

func ParsePeriodicity(s string) (Periodicity, bool) {
	p := Periodicity(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PeriodicityDaily, PeriodicityWeekly, PeriodicityMonthly,
		PeriodicityQuarterly, PeriodicitySemiAnnually, PeriodicityYearly:
		return p, true
	}
	return "", false
}

// FieldValues is the raw vendor payload for one security. It must not travel
// past the source parsing boundary; use the typed accessors to lift values.
type FieldValues map[FieldID]any

type ReferenceRecord struct {
	Security string      `json:"security"`
	Fields   FieldValues `json:"fields"`
	Errors   []string    `json:"errors,omitempty"`
}

type HistoricalRecord struct {
	Security string      `json:"security"`
	Date     civil.Date  `json:"date"`
	Fields   FieldValues `json:"fields"`
	Errors   []string    `json:"errors,omitempty"`
}

func (v FieldValues) Float(f FieldID) *float64 {
	raw, ok := v[f]
	if !ok || raw == nil {
		return nil
	}
	switch x := raw.(type) {
	case float64:
		return &x
	case float32:
		return Float(float64(x))
	case int:
		return Float(float64(x))
	case int64:
		return Float(float64(x))
	case json.Number:
		if n, err := x.Float64(); err == nil {
			return &n
		}
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return &n
		}
	}
	return nil
}

func (v FieldValues) String(f FieldID) (string, bool) {
	raw, ok := v[f]
	if !ok || raw == nil {
		return "", false
	}
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func (v FieldValues) Date(f FieldID) (civil.Date, bool) {
	raw, ok := v[f]
	if !ok || raw == nil {
		return civil.Date{}, false
	}
	switch x := raw.(type) {
	case civil.Date:
		return x, x.IsValid()
	case time.Time:
		return civil.DateOf(x), true
	case string:
		return ParseVendorDate(x)
	}
	return civil.Date{}, false
}

// Strings lifts a list-valued field such as the option chain. JSON-decoded
// lists arrive as []any.
func (v FieldValues) Strings(f FieldID) []string {
	switch x := v[f].(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

var vendorDateLayouts = []string{"2006-01-02", "01/02/2006", "01/02/06", "20060102"}

// ParseVendorDate accepts the date spellings seen in reference responses.
func ParseVendorDate(s string) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range vendorDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}
