package usecase

import (
	"context"
	"errors"
	"time"

	"OptRoll/internal/domain/models"

	"cloud.google.com/go/civil"
)

// fakeSource is a scripted MarketDataSource keyed by security and as-of date.
type fakeSource struct {
	chain     map[string][]string
	contracts map[string]models.FieldValues
	prices    map[string]map[civil.Date]models.FieldValues
	history   map[string][]models.HistoricalRecord

	failPricesOn map[civil.Date]bool
	panicOn      map[civil.Date]bool
	failBatches  map[int]bool
	openErr      error

	opened, closed int
	chainCalls     int
	contractCalls  int
	refCalls       [][]string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		chain:        map[string][]string{},
		contracts:    map[string]models.FieldValues{},
		prices:       map[string]map[civil.Date]models.FieldValues{},
		history:      map[string][]models.HistoricalRecord{},
		failPricesOn: map[civil.Date]bool{},
		panicOn:      map[civil.Date]bool{},
		failBatches:  map[int]bool{},
	}
}

func (f *fakeSource) addContract(ticker string, strike float64, expiry civil.Date, flag string) {
	f.contracts[ticker] = models.FieldValues{
		models.FieldStrike:  strike,
		models.FieldExpiry:  expiry,
		models.FieldPutCall: flag,
	}
}

func (f *fakeSource) setPrice(security string, day civil.Date, fields models.FieldValues) {
	if f.prices[security] == nil {
		f.prices[security] = map[civil.Date]models.FieldValues{}
	}
	f.prices[security][day] = fields
}

func (f *fakeSource) Open(context.Context) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened++
	return nil
}

func (f *fakeSource) Close() error {
	f.closed++
	return nil
}

func (f *fakeSource) FetchReferenceFields(_ context.Context, securities []string, fields []models.FieldID, asOf *civil.Date) models.Response[[]models.ReferenceRecord] {
	f.refCalls = append(f.refCalls, securities)
	out := models.Response[[]models.ReferenceRecord]{}

	switch {
	case len(fields) == 1 && fields[0] == models.FieldChain:
		f.chainCalls++
		for _, sec := range securities {
			out.Data = append(out.Data, models.ReferenceRecord{
				Security: sec,
				Fields:   models.FieldValues{models.FieldChain: f.chain[sec]},
			})
		}
		return out

	case len(fields) > 0 && fields[0] == models.FieldStrike:
		batch := f.contractCalls
		f.contractCalls++
		if f.failBatches[batch] {
			return models.FailedResponse[[]models.ReferenceRecord](
				models.NewErrorDetail(models.ErrKindSourceRequest, "batch rejected", errors.New("request too large"), nil))
		}
		for _, sec := range securities {
			rec := models.ReferenceRecord{Security: sec, Fields: f.contracts[sec]}
			if rec.Fields == nil {
				rec.Fields = models.FieldValues{}
				rec.Errors = []string{"unknown security"}
			}
			out.Data = append(out.Data, rec)
		}
		return out
	}

	day := *asOf
	if f.panicOn[day] {
		panic("session dropped")
	}
	if f.failPricesOn[day] {
		return models.FailedResponse[[]models.ReferenceRecord](
			models.NewErrorDetail(models.ErrKindSourceRequest, "timeout", errors.New("deadline exceeded"), nil))
	}
	for _, sec := range securities {
		out.Data = append(out.Data, models.ReferenceRecord{Security: sec, Fields: f.prices[sec][day]})
	}
	return out
}

func (f *fakeSource) FetchHistoricalFields(_ context.Context, securities []string, _ []models.FieldID, start, end civil.Date, _ models.Periodicity) models.Response[[]models.HistoricalRecord] {
	out := models.Response[[]models.HistoricalRecord]{}
	for _, sec := range securities {
		for _, r := range f.history[sec] {
			if !r.Date.Before(start) && !r.Date.After(end) {
				out.Data = append(out.Data, r)
			}
		}
	}
	return out
}

func date(y int, m int, d int) civil.Date {
	return civil.Date{Year: y, Month: time.Month(m), Day: d}
}
