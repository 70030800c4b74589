// Package report flattens ATM series into fixed-column rows and renders them.
package report

import (
	"strconv"

	"OptRoll/internal/domain/models"
)

// Row is one date of a flattened series. Absent values are empty strings.
type Row struct {
	Date             string `csv:"date" json:"date"`
	UnderlyingTicker string `csv:"underlying_ticker" json:"underlying_ticker"`
	ExpiryDate       string `csv:"expiry_date" json:"expiry_date"`
	DaysToExpiry     string `csv:"days_to_expiry" json:"days_to_expiry"`
	UnderlyingSettle string `csv:"underlying_settle" json:"underlying_settle"`
	UnderlyingLast   string `csv:"underlying_last" json:"underlying_last"`
	UnderlyingBid    string `csv:"underlying_bid" json:"underlying_bid"`
	UnderlyingAsk    string `csv:"underlying_ask" json:"underlying_ask"`
	UnderlyingMid    string `csv:"underlying_mid" json:"underlying_mid"`
	ATMStrike        string `csv:"atm_strike" json:"atm_strike"`

	CallTicker       string `csv:"call_ticker" json:"call_ticker"`
	CallSettle       string `csv:"call_settle" json:"call_settle"`
	CallLast         string `csv:"call_last" json:"call_last"`
	CallBid          string `csv:"call_bid" json:"call_bid"`
	CallAsk          string `csv:"call_ask" json:"call_ask"`
	CallMid          string `csv:"call_mid" json:"call_mid"`
	CallVolume       string `csv:"call_volume" json:"call_volume"`
	CallOpenInterest string `csv:"call_open_interest" json:"call_open_interest"`
	CallImpliedVol   string `csv:"call_implied_vol" json:"call_implied_vol"`
	CallDelta        string `csv:"call_delta" json:"call_delta"`
	CallGamma        string `csv:"call_gamma" json:"call_gamma"`
	CallTheta        string `csv:"call_theta" json:"call_theta"`
	CallVega         string `csv:"call_vega" json:"call_vega"`

	PutTicker       string `csv:"put_ticker" json:"put_ticker"`
	PutSettle       string `csv:"put_settle" json:"put_settle"`
	PutLast         string `csv:"put_last" json:"put_last"`
	PutBid          string `csv:"put_bid" json:"put_bid"`
	PutAsk          string `csv:"put_ask" json:"put_ask"`
	PutMid          string `csv:"put_mid" json:"put_mid"`
	PutVolume       string `csv:"put_volume" json:"put_volume"`
	PutOpenInterest string `csv:"put_open_interest" json:"put_open_interest"`
	PutImpliedVol   string `csv:"put_implied_vol" json:"put_implied_vol"`
	PutDelta        string `csv:"put_delta" json:"put_delta"`
	PutGamma        string `csv:"put_gamma" json:"put_gamma"`
	PutTheta        string `csv:"put_theta" json:"put_theta"`
	PutVega         string `csv:"put_vega" json:"put_vega"`
}

// Flatten converts points to rows in the same order.
func Flatten(points []models.ATMOptionDataPoint) []Row {
	rows := make([]Row, 0, len(points))
	for _, p := range points {
		rows = append(rows, FlattenPoint(p))
	}
	return rows
}

func FlattenPoint(p models.ATMOptionDataPoint) Row {
	r := Row{
		Date:             p.Date.String(),
		UnderlyingTicker: p.UnderlyingTicker,
		UnderlyingSettle: num(p.UnderlyingSettle),
		UnderlyingLast:   num(p.UnderlyingLast),
		UnderlyingBid:    num(p.UnderlyingBid),
		UnderlyingAsk:    num(p.UnderlyingAsk),
		UnderlyingMid:    num(p.UnderlyingMid()),
		ATMStrike:        num(p.ATMStrike()),
	}
	if p.OptionExpiry != nil {
		r.ExpiryDate = p.OptionExpiry.String()
	}
	if d, ok := p.DaysToExpiry(); ok {
		r.DaysToExpiry = strconv.Itoa(d)
	}

	if c := leg(p.Call); c != nil {
		r.CallTicker, r.CallSettle, r.CallLast = c.ticker, c.settle, c.last
		r.CallBid, r.CallAsk, r.CallMid = c.bid, c.ask, c.mid
		r.CallVolume, r.CallOpenInterest, r.CallImpliedVol = c.volume, c.oi, c.iv
		r.CallDelta, r.CallGamma, r.CallTheta, r.CallVega = c.delta, c.gamma, c.theta, c.vega
	}
	if c := leg(p.Put); c != nil {
		r.PutTicker, r.PutSettle, r.PutLast = c.ticker, c.settle, c.last
		r.PutBid, r.PutAsk, r.PutMid = c.bid, c.ask, c.mid
		r.PutVolume, r.PutOpenInterest, r.PutImpliedVol = c.volume, c.oi, c.iv
		r.PutDelta, r.PutGamma, r.PutTheta, r.PutVega = c.delta, c.gamma, c.theta, c.vega
	}
	return r
}

type legCells struct {
	ticker, settle, last, bid, ask, mid       string
	volume, oi, iv, delta, gamma, theta, vega string
}

func leg(m *models.OptionMarketData) *legCells {
	if m == nil {
		return nil
	}
	return &legCells{
		ticker: m.Contract.Ticker,
		settle: num(m.Settle),
		last:   num(m.Last),
		bid:    num(m.Bid),
		ask:    num(m.Ask),
		mid:    num(m.MidPrice()),
		volume: num(m.Volume),
		oi:     num(m.OpenInterest),
		iv:     num(m.ImpliedVol),
		delta:  num(m.Delta),
		gamma:  num(m.Gamma),
		theta:  num(m.Theta),
		vega:   num(m.Vega),
	}
}

func num(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
