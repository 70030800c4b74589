package report

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"OptRoll/internal/domain/models"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePoints() []models.ATMOptionDataPoint {
	d1 := civil.Date{Year: 2024, Month: 11, Day: 1}
	exp := civil.Date{Year: 2024, Month: 11, Day: 15}
	call := &models.OptionMarketData{
		Contract: models.OptionContract{Ticker: "SPY US 11/15/24 C100 Equity", Strike: 100, Expiry: exp, OptionType: models.OptionTypeCall},
		AsOfDate: d1,
		Settle:   models.Float(2.5),
		Bid:      models.Float(2.4),
		Ask:      models.Float(2.6),
		Delta:    models.Float(0.51),
	}
	return []models.ATMOptionDataPoint{
		{
			Date:             d1,
			UnderlyingTicker: "SPY",
			OptionExpiry:     &exp,
			UnderlyingSettle: models.Float(100.2),
			UnderlyingBid:    models.Float(100),
			UnderlyingAsk:    models.Float(100.5),
			Call:             call,
		},
		{Date: d1.AddDays(1), UnderlyingTicker: "SPY"},
	}
}

func TestFlatten(t *testing.T) {
	rows := Flatten(samplePoints())
	require.Len(t, rows, 2)

	r := rows[0]
	assert.Equal(t, "2024-11-01", r.Date)
	assert.Equal(t, "2024-11-15", r.ExpiryDate)
	assert.Equal(t, "14", r.DaysToExpiry)
	assert.Equal(t, "100.25", r.UnderlyingMid)
	assert.Equal(t, "100", r.ATMStrike)
	assert.Equal(t, "2.5", r.CallMid)
	assert.Equal(t, "0.51", r.CallDelta)
	assert.Empty(t, r.CallVolume)
	assert.Empty(t, r.PutTicker, "absent leg is all null")
	assert.Empty(t, r.PutMid)

	empty := rows[1]
	assert.Equal(t, "2024-11-02", empty.Date)
	assert.Empty(t, empty.ExpiryDate)
	assert.Empty(t, empty.DaysToExpiry)
	assert.Empty(t, empty.ATMStrike)
}

func TestCSVRoundTrip(t *testing.T) {
	rows := Flatten(samplePoints())
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.True(t, strings.HasPrefix(header, "date,underlying_ticker,expiry_date,days_to_expiry"))
	assert.Contains(t, header, "put_vega")

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, back)
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.csv")
	require.NoError(t, WriteCSVFile(path, Flatten(samplePoints())))
	assert.FileExists(t, path)
}

func TestWriteTableUsesNullMarker(t *testing.T) {
	var buf bytes.Buffer
	WriteTable(&buf, Flatten(samplePoints()))
	out := buf.String()
	assert.Contains(t, out, "2024-11-02")
	assert.Contains(t, out, "SPY US 11/15/24 C100 Equity")
	assert.Contains(t, out, tableNull)
}

func TestWriteErrors(t *testing.T) {
	var buf bytes.Buffer
	WriteErrors(&buf, nil)
	assert.Empty(t, buf.String())

	d := models.NewErrorDetail(models.ErrKindDateFetch, "fetch failed", errors.New("timeout"),
		map[string]any{"date": "2024-11-03", "underlying": "SPY"})
	WriteErrors(&buf, []models.ErrorDetail{d})
	out := buf.String()
	assert.Contains(t, out, string(models.ErrKindDateFetch))
	assert.Contains(t, out, "date=2024-11-03 underlying=SPY")
}
