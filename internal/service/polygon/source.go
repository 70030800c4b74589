// Package polygon serves market data from the Polygon.io REST API.
package polygon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"OptRoll/internal/domain/models"
	drepo "OptRoll/internal/domain/repository"
	"OptRoll/internal/service/ratelimit"
	xlogger "OptRoll/pkg/logger"

	"cloud.google.com/go/civil"
	pmodels "github.com/polygon-io/client-go/rest/models"
)

var (
	ErrSourceClosed = errors.New("polygon: session not open")
	ErrMissingKey   = errors.New("polygon: api key is required")
)

// Source is a MarketDataSource over Polygon. Reference requests for prices
// read the daily aggregate of the as-of date; a missing as-of date reads the
// live contract snapshot for quotes and greeks.
type Source struct {
	apiKey  string
	api     vendor
	limiter *ratelimit.Limiter
	logger  *xlogger.Logger
	today   func() civil.Date

	mu   sync.Mutex
	open bool
	// listed holds contracts seen while listing a chain this session.
	listed map[string]pmodels.OptionsContract
}

func NewSource(apiKey string, limiter *ratelimit.Limiter, logger *xlogger.Logger) *Source {
	return &Source{
		apiKey:  apiKey,
		limiter: limiter,
		logger:  logger,
		today:   func() civil.Date { return civil.DateOf(time.Now()) },
	}
}

var _ drepo.MarketDataSource = (*Source)(nil)

func (s *Source) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil
	}
	if s.api == nil {
		if s.apiKey == "" {
			return ErrMissingKey
		}
		s.api = newRestClient(s.apiKey)
	}
	s.open = true
	s.listed = make(map[string]pmodels.OptionsContract)
	s.logger.Debug("polygon session opened")
	return nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.listed = nil
	return nil
}

func (s *Source) isOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// FetchReferenceFields answers per security. A security the vendor has no
// data for gets a record error; transport failures become request errors.
func (s *Source) FetchReferenceFields(ctx context.Context, securities []string, fields []models.FieldID, asOf *civil.Date) models.Response[[]models.ReferenceRecord] {
	out := models.Response[[]models.ReferenceRecord]{Data: make([]models.ReferenceRecord, 0, len(securities))}
	if !s.isOpen() {
		out.AddError(requestError("reference request", ErrSourceClosed, nil))
		return out
	}

	want := fieldGroups(fields)
	for _, sec := range securities {
		rec := models.ReferenceRecord{Security: sec, Fields: models.FieldValues{}}
		if err := s.fillReference(ctx, &rec, want, asOf); err != nil {
			if errors.Is(err, errNotFound) {
				rec.Errors = append(rec.Errors, fmt.Sprintf("no data for %s", sec))
			} else {
				out.AddError(requestError("reference request", err, map[string]any{"security": sec}))
				continue
			}
		}
		out.Data = append(out.Data, rec)
	}
	return out
}

type groups struct {
	chain, contract, bar, snapshot bool
	fields                         map[models.FieldID]bool
}

func fieldGroups(fields []models.FieldID) groups {
	g := groups{fields: make(map[models.FieldID]bool, len(fields))}
	for _, f := range fields {
		g.fields[f] = true
		switch f {
		case models.FieldChain:
			g.chain = true
		case models.FieldStrike, models.FieldPutCall, models.FieldExpiry, models.FieldUnderlying:
			g.contract = true
		case models.FieldSettle, models.FieldLast, models.FieldOpen, models.FieldHigh, models.FieldLow, models.FieldVolume:
			g.bar = true
		case models.FieldBid, models.FieldAsk, models.FieldOpenInterest, models.FieldImpliedVol,
			models.FieldDelta, models.FieldGamma, models.FieldTheta, models.FieldVega:
			g.snapshot = true
		}
	}
	return g
}

// listChain lists every contract on underlying that was live on asOf. A past
// asOf needs both expired listings: contracts that expired since then and
// contracts still trading today.
func (s *Source) listChain(ctx context.Context, underlying string, asOf *civil.Date) ([]pmodels.OptionsContract, error) {
	passes := []bool{false}
	if asOf != nil && asOf.Before(s.today()) {
		passes = []bool{true, false}
	}

	var out []pmodels.OptionsContract
	seen := make(map[string]struct{})
	for _, expired := range passes {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		listed, err := s.api.ListContracts(ctx, underlying, asOf, expired)
		if err != nil {
			return nil, fmt.Errorf("list contracts (expired=%t): %w", expired, err)
		}
		for _, c := range listed {
			if _, dup := seen[c.Ticker]; dup {
				continue
			}
			seen[c.Ticker] = struct{}{}
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Source) fillReference(ctx context.Context, rec *models.ReferenceRecord, g groups, asOf *civil.Date) error {
	if g.chain {
		listed, err := s.listChain(ctx, rec.Security, asOf)
		if err != nil {
			return err
		}
		tickers := make([]string, 0, len(listed))
		s.mu.Lock()
		for _, c := range listed {
			tickers = append(tickers, c.Ticker)
			s.listed[c.Ticker] = c
		}
		s.mu.Unlock()
		rec.Fields[models.FieldChain] = tickers
	}

	if g.contract {
		c, err := s.contract(ctx, rec.Security, asOf)
		if err != nil {
			return fmt.Errorf("contract: %w", err)
		}
		putContract(rec.Fields, g, c)
	}

	live := asOf == nil || *asOf == s.today()
	if g.bar {
		day := s.today()
		if asOf != nil {
			day = *asOf
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		b, err := s.api.DailyBar(ctx, rec.Security, day)
		switch {
		case errors.Is(err, errNotFound) && live:
			// today's bar is not published until the close
		case err != nil:
			return fmt.Errorf("daily bar: %w", err)
		default:
			putBar(rec.Fields, g.fields, b)
		}
	}

	if g.snapshot && live {
		c, ok := parseOCC(rec.Security)
		if !ok {
			return nil
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		q, err := s.api.Snapshot(ctx, c.Underlying, rec.Security)
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		putQuote(rec.Fields, g.fields, q)
	}
	return nil
}

func (s *Source) contract(ctx context.Context, ticker string, asOf *civil.Date) (pmodels.OptionsContract, error) {
	s.mu.Lock()
	c, ok := s.listed[ticker]
	s.mu.Unlock()
	if ok {
		return c, nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return pmodels.OptionsContract{}, err
	}
	return s.api.Contract(ctx, ticker, asOf)
}

func putContract(f models.FieldValues, g groups, c pmodels.OptionsContract) {
	if g.fields[models.FieldStrike] {
		f[models.FieldStrike] = c.StrikePrice
	}
	if g.fields[models.FieldPutCall] {
		f[models.FieldPutCall] = c.ContractType
	}
	if g.fields[models.FieldExpiry] {
		f[models.FieldExpiry] = civil.DateOf(time.Time(c.ExpirationDate))
	}
	if g.fields[models.FieldUnderlying] && c.UnderlyingTicker != "" {
		f[models.FieldUnderlying] = c.UnderlyingTicker
	}
}

func putBar(f models.FieldValues, want map[models.FieldID]bool, b bar) {
	set := func(id models.FieldID, v float64) {
		if want[id] {
			f[id] = v
		}
	}
	set(models.FieldSettle, b.Close)
	set(models.FieldLast, b.Close)
	set(models.FieldOpen, b.Open)
	set(models.FieldHigh, b.High)
	set(models.FieldLow, b.Low)
	set(models.FieldVolume, b.Volume)
}

// putQuote fills live fields; zero means the vendor had no value.
func putQuote(f models.FieldValues, want map[models.FieldID]bool, q quote) {
	set := func(id models.FieldID, v float64) {
		if want[id] && v != 0 {
			f[id] = v
		}
	}
	set(models.FieldBid, q.Bid)
	set(models.FieldAsk, q.Ask)
	set(models.FieldOpenInterest, q.OpenInterest)
	set(models.FieldImpliedVol, q.ImpliedVol)
	set(models.FieldDelta, q.Delta)
	set(models.FieldGamma, q.Gamma)
	set(models.FieldTheta, q.Theta)
	set(models.FieldVega, q.Vega)
	if _, ok := f[models.FieldLast]; !ok {
		set(models.FieldLast, q.Close)
	}
	if _, ok := f[models.FieldVolume]; !ok {
		set(models.FieldVolume, q.Volume)
	}
}

func (s *Source) FetchHistoricalFields(ctx context.Context, securities []string, fields []models.FieldID, start, end civil.Date, periodicity models.Periodicity) models.Response[[]models.HistoricalRecord] {
	out := models.Response[[]models.HistoricalRecord]{Data: []models.HistoricalRecord{}}
	if !s.isOpen() {
		out.AddError(requestError("historical request", ErrSourceClosed, nil))
		return out
	}
	mult, span, err := timespanFor(periodicity)
	if err != nil {
		out.AddError(requestError("historical request", err, map[string]any{"periodicity": string(periodicity)}))
		return out
	}

	want := make(map[models.FieldID]bool, len(fields))
	for _, f := range fields {
		want[f] = true
	}
	for _, sec := range securities {
		if err := s.limiter.Wait(ctx); err != nil {
			out.AddError(requestError("historical request", err, map[string]any{"security": sec}))
			return out
		}
		bars, err := s.api.Bars(ctx, sec, mult, span, start, end)
		if errors.Is(err, errNotFound) {
			out.Data = append(out.Data, models.HistoricalRecord{Security: sec, Errors: []string{fmt.Sprintf("no history for %s", sec)}})
			continue
		}
		if err != nil {
			out.AddError(requestError("historical request", err, map[string]any{"security": sec}))
			continue
		}
		for _, b := range bars {
			rec := models.HistoricalRecord{Security: sec, Date: b.Date, Fields: models.FieldValues{}}
			putBar(rec.Fields, want, b)
			out.Data = append(out.Data, rec)
		}
	}
	return out
}

func timespanFor(p models.Periodicity) (int, pmodels.Timespan, error) {
	switch p {
	case models.PeriodicityDaily, "":
		return 1, pmodels.Day, nil
	case models.PeriodicityWeekly:
		return 1, pmodels.Week, nil
	case models.PeriodicityMonthly:
		return 1, pmodels.Month, nil
	case models.PeriodicityQuarterly:
		return 1, pmodels.Quarter, nil
	case models.PeriodicitySemiAnnually:
		return 6, pmodels.Month, nil
	case models.PeriodicityYearly:
		return 1, pmodels.Year, nil
	}
	return 0, "", fmt.Errorf("unsupported periodicity %q", p)
}

func requestError(msg string, err error, ctx map[string]any) models.ErrorDetail {
	return models.NewErrorDetail(models.ErrKindSourceRequest, msg, err, ctx)
}
