package polygon

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	polygonrest "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
)

var errNotFound = errors.New("polygon: no data")

// bar is one OHLCV aggregate.
type bar struct {
	Date   civil.Date
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// quote is the live snapshot of an option contract.
type quote struct {
	Bid, Ask, Close, Volume, OpenInterest, ImpliedVol float64
	Delta, Gamma, Theta, Vega                         float64
}

// vendor is the subset of the Polygon REST API the source relies on.
type vendor interface {
	ListContracts(ctx context.Context, underlying string, asOf *civil.Date, expired bool) ([]models.OptionsContract, error)
	Contract(ctx context.Context, ticker string, asOf *civil.Date) (models.OptionsContract, error)
	DailyBar(ctx context.Context, ticker string, day civil.Date) (bar, error)
	Bars(ctx context.Context, ticker string, multiplier int, span models.Timespan, start, end civil.Date) ([]bar, error)
	Snapshot(ctx context.Context, underlying, ticker string) (quote, error)
}

type restClient struct {
	c *polygonrest.Client
}

func newRestClient(apiKey string) *restClient {
	return &restClient{c: polygonrest.New(apiKey)}
}

func toDate(d civil.Date) models.Date { return models.Date(d.In(time.UTC)) }

// ListContracts lists one side of the expired flag. Polygon judges expired
// against today, not against asOf.
func (r *restClient) ListContracts(ctx context.Context, underlying string, asOf *civil.Date, expired bool) ([]models.OptionsContract, error) {
	params := models.ListOptionsContractsParams{}.
		WithUnderlyingTicker(models.EQ, underlying).
		WithExpired(expired).
		WithLimit(1000)
	if asOf != nil {
		params = params.WithAsOf(toDate(*asOf))
	}

	it := r.c.ListOptionsContracts(ctx, params)
	var out []models.OptionsContract
	for it.Next() {
		out = append(out, it.Item())
	}
	return out, mapErr(it.Err())
}

func (r *restClient) Contract(ctx context.Context, ticker string, asOf *civil.Date) (models.OptionsContract, error) {
	params := &models.GetOptionsContractParams{Ticker: ticker}
	if asOf != nil {
		params = params.WithAsOf(toDate(*asOf))
	}
	res, err := r.c.GetOptionsContract(ctx, params)
	if err != nil {
		return models.OptionsContract{}, mapErr(err)
	}
	return res.Results, nil
}

func (r *restClient) DailyBar(ctx context.Context, ticker string, day civil.Date) (bar, error) {
	res, err := r.c.GetDailyOpenCloseAgg(ctx, &models.GetDailyOpenCloseAggParams{
		Ticker: ticker,
		Date:   toDate(day),
	})
	if err != nil {
		return bar{}, mapErr(err)
	}
	return bar{Date: day, Open: res.Open, High: res.High, Low: res.Low, Close: res.Close, Volume: res.Volume}, nil
}

func (r *restClient) Bars(ctx context.Context, ticker string, multiplier int, span models.Timespan, start, end civil.Date) ([]bar, error) {
	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: multiplier,
		Timespan:   span,
		From:       models.Millis(start.In(time.UTC)),
		To:         models.Millis(end.In(time.UTC)),
	}.WithOrder(models.Asc).WithAdjusted(true)

	it := r.c.ListAggs(ctx, params)
	var out []bar
	for it.Next() {
		a := it.Item()
		out = append(out, bar{
			Date:   civil.DateOf(time.Time(a.Timestamp).UTC()),
			Open:   a.Open,
			High:   a.High,
			Low:    a.Low,
			Close:  a.Close,
			Volume: a.Volume,
		})
	}
	return out, mapErr(it.Err())
}

func (r *restClient) Snapshot(ctx context.Context, underlying, ticker string) (quote, error) {
	res, err := r.c.GetOptionContractSnapshot(ctx, &models.GetOptionContractSnapshotParams{
		UnderlyingAsset: underlying,
		OptionContract:  ticker,
	})
	if err != nil {
		return quote{}, mapErr(err)
	}
	s := res.Results
	return quote{
		Bid:          s.LastQuote.Bid,
		Ask:          s.LastQuote.Ask,
		Close:        s.Day.Close,
		Volume:       s.Day.Volume,
		OpenInterest: s.OpenInterest,
		ImpliedVol:   s.ImpliedVolatility,
		Delta:        s.Greeks.Delta,
		Gamma:        s.Greeks.Gamma,
		Theta:        s.Greeks.Theta,
		Vega:         s.Greeks.Vega,
	}, nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *models.ErrorResponse
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	return err
}
