package polygon

import (
	"strconv"
	"strings"
	"time"

	"OptRoll/internal/domain/models"

	"cloud.google.com/go/civil"
)

// parseOCC decodes a Polygon option ticker such as "O:SPY241115C00450000":
// root, yymmdd expiry, C or P, strike times 1000 in eight digits.
func parseOCC(ticker string) (models.OptionContract, bool) {
	s := strings.TrimPrefix(ticker, "O:")
	if len(s) < 16 {
		return models.OptionContract{}, false
	}
	root := s[:len(s)-15]
	tail := s[len(s)-15:]

	exp, err := time.Parse("060102", tail[:6])
	if err != nil {
		return models.OptionContract{}, false
	}
	typ, ok := models.ParseOptionType(tail[6:7])
	if !ok {
		return models.OptionContract{}, false
	}
	milli, err := strconv.ParseInt(tail[7:], 10, 64)
	if err != nil || milli <= 0 {
		return models.OptionContract{}, false
	}
	return models.OptionContract{
		Ticker:     ticker,
		Strike:     float64(milli) / 1000,
		Expiry:     civil.DateOf(exp),
		OptionType: typ,
		Underlying: root,
	}, true
}
