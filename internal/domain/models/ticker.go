package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

const (
	DefaultCountry      = "US"
	DefaultSecurityType = "Equity"
)

// FormatTicker builds a vendor option ticker such as
// "NVDA US 11/21/25 C177.5 Equity".
func FormatTicker(underlying string, expiry civil.Date, t OptionType, strike float64, country, secType string) string {
	if country == "" {
		country = DefaultCountry
	}
	if secType == "" {
		secType = DefaultSecurityType
	}
	exp := expiry.In(time.UTC).Format("01/02/06")
	return fmt.Sprintf("%s %s %s %s%s %s", underlying, country, exp, t.Short(),
		strconv.FormatFloat(strike, 'f', -1, 64), secType)
}

// ParseTicker recovers contract attributes from a vendor ticker. Only use it
// when reference fields are unavailable: ticker shapes vary across vendors.
func ParseTicker(ticker string) (OptionContract, bool) {
	parts := strings.Fields(ticker)
	if len(parts) < 3 {
		return OptionContract{}, false
	}
	for i := 1; i < len(parts)-1; i++ {
		t, err := time.Parse("01/02/06", parts[i])
		if err != nil {
			continue
		}
		leg := parts[i+1]
		if len(leg) < 2 {
			return OptionContract{}, false
		}
		typ, ok := ParseOptionType(leg[:1])
		if !ok {
			return OptionContract{}, false
		}
		strike, err := strconv.ParseFloat(leg[1:], 64)
		if err != nil || strike <= 0 {
			return OptionContract{}, false
		}
		return OptionContract{
			Ticker:     ticker,
			Strike:     strike,
			Expiry:     civil.DateOf(t),
			OptionType: typ,
			Underlying: parts[0],
		}, true
	}
	return OptionContract{}, false
}
