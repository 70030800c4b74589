package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"OptRoll/internal/domain/models"
	drepo "OptRoll/internal/domain/repository"
	xlogger "OptRoll/pkg/logger"

	"cloud.google.com/go/civil"
)

var (
	ErrInvalidDateRange = errors.New("start date is after end date")
	ErrEmptyUnderlying  = errors.New("underlying is required")
)

// Day outcomes reported to metrics.
const (
	DayOK       = "ok"
	DayNoExpiry = "no_expiry"
	DayNoPrice  = "no_price"
	DayNoStrike = "no_strike"
	DayFailed   = "failed"
)

type SeriesRequest struct {
	Underlying string
	Start      civil.Date
	End        civil.Date
	// AsOf pins chain discovery to a fixed date instead of Start.
	AsOf *civil.Date
	// Strict records informational errors (empty chain, no qualifying
	// expiry) alongside real failures.
	Strict bool
}

// ATMSeries builds a daily at-the-money series that rolls to the next
// qualifying expiry as the tracked one nears expiration.
type ATMSeries struct {
	source    drepo.MarketDataSource
	discovery *ChainDiscovery
	policy    ATMPolicy
	logger    *xlogger.Logger
	metrics   drepo.Metrics
}

func NewATMSeries(source drepo.MarketDataSource, policy ATMPolicy, logger *xlogger.Logger, metrics drepo.Metrics) *ATMSeries {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &ATMSeries{
		source:    source,
		discovery: NewChainDiscovery(source, policy, logger, metrics),
		policy:    policy,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run produces exactly one point per calendar day in [Start, End] once the
// chain resolves to at least one contract. Only an invalid request returns a
// Go error; everything else is reported in the Response.
func (s *ATMSeries) Run(ctx context.Context, req SeriesRequest) (models.Response[[]models.ATMOptionDataPoint], error) {
	out := models.Response[[]models.ATMOptionDataPoint]{Data: []models.ATMOptionDataPoint{}}
	if req.Underlying == "" {
		return out, ErrEmptyUnderlying
	}
	if req.End.Before(req.Start) {
		return out, fmt.Errorf("%w: %s > %s", ErrInvalidDateRange, req.Start, req.End)
	}

	log := s.logger.With("underlying", req.Underlying)
	started := time.Now()

	if err := s.source.Open(ctx); err != nil {
		out.AddError(models.NewErrorDetail(models.ErrKindDiscovery, "open market data session", err,
			errorContext("underlying", req.Underlying)))
		s.metrics.RecordError(string(models.ErrKindDiscovery))
		return out, nil
	}
	defer func() {
		if err := s.source.Close(); err != nil {
			log.Warn("close market data session", xlogger.Error(err))
		}
	}()

	contracts, ok := s.discover(ctx, log, req, &out)
	if !ok {
		s.metrics.RecordRun(req.Underlying, 0, len(out.Errors))
		return out, nil
	}

	out.Data = make([]models.ATMOptionDataPoint, 0, req.End.DaysSince(req.Start)+1)
	selector := NewExpirySelector(s.policy)
	byTicker := make(map[string]models.OptionContract, len(contracts))
	for _, c := range contracts {
		if _, ok := byTicker[c.Ticker]; !ok {
			byTicker[c.Ticker] = c
		}
	}

	for day := req.Start; !day.After(req.End); day = day.AddDays(1) {
		point, detail := s.runDay(ctx, log, req, day, selector, contracts, byTicker)
		out.Data = append(out.Data, point)
		if detail != nil {
			out.AddError(*detail)
		}
	}

	s.metrics.RecordRun(req.Underlying, len(out.Data), len(out.Errors))
	log.Info("atm series complete",
		xlogger.Date("start", req.Start),
		xlogger.Date("end", req.End),
		xlogger.Int("points", len(out.Data)),
		xlogger.Int("errors", len(out.Errors)),
		xlogger.Duration("took", time.Since(started)),
	)
	return out, nil
}

func (s *ATMSeries) discover(ctx context.Context, log *xlogger.Logger, req SeriesRequest, out *models.Response[[]models.ATMOptionDataPoint]) ([]models.OptionContract, bool) {
	asOf := req.Start
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	chain := s.discovery.DiscoverChain(ctx, req.Underlying, &asOf)
	out.Merge(chain.Errors)
	if len(chain.Data) == 0 {
		log.Info("no listed options", xlogger.Date("as_of", asOf))
		if req.Strict && chain.Success() {
			out.AddError(models.NewErrorDetail(models.ErrKindNoOptionsFound, "option chain is empty", nil,
				errorContext("underlying", req.Underlying, "as_of", asOf.String())))
		}
		return nil, false
	}

	resolved := s.discovery.ResolveContracts(ctx, chain.Data, req.Underlying, &asOf)
	out.Merge(resolved.Errors)
	if len(resolved.Data) == 0 {
		log.Info("no contracts resolved", xlogger.Int("chain", len(chain.Data)))
		if req.Strict {
			out.AddError(models.NewErrorDetail(models.ErrKindNoOptionsFound, "no contracts resolved from chain", nil,
				errorContext("underlying", req.Underlying, "as_of", asOf.String(), "chain", len(chain.Data))))
		}
		return nil, false
	}
	return resolved.Data, true
}

func (s *ATMSeries) runDay(
	ctx context.Context,
	log *xlogger.Logger,
	req SeriesRequest,
	day civil.Date,
	selector *ExpirySelector,
	contracts []models.OptionContract,
	byTicker map[string]models.OptionContract,
) (models.ATMOptionDataPoint, *models.ErrorDetail) {
	point := models.ATMOptionDataPoint{Date: day, UnderlyingTicker: req.Underlying}

	prev := selector.Current()
	expiry, ok, rolled := selector.Advance(contracts, day)
	if !ok {
		s.metrics.RecordDay(req.Underlying, DayNoExpiry)
		log.Debug("no qualifying expiry", xlogger.Date("date", day))
		if req.Strict {
			d := models.NewErrorDetail(models.ErrKindRollResolution, "no qualifying expiry", nil,
				errorContext("date", day.String(), "underlying", req.Underlying))
			return point, &d
		}
		return point, nil
	}
	if rolled {
		s.metrics.RecordRoll(req.Underlying)
		log.Info("rolled expiry",
			xlogger.Date("date", day),
			xlogger.Date("from", *prev),
			xlogger.Date("to", expiry),
		)
	}
	point.OptionExpiry = &expiry

	outcome, err := s.fillDay(ctx, log, &point, contracts, byTicker)
	if err != nil {
		s.metrics.RecordDay(req.Underlying, DayFailed)
		s.metrics.RecordError(string(models.ErrKindDateFetch))
		log.Warn("day fetch failed", xlogger.Date("date", day), xlogger.Error(err))
		d := models.NewErrorDetail(models.ErrKindDateFetch, fmt.Sprintf("fetch for %s failed", day), err,
			errorContext("date", day.String(), "underlying", req.Underlying))
		return models.ATMOptionDataPoint{Date: day, UnderlyingTicker: req.Underlying}, &d
	}
	s.metrics.RecordDay(req.Underlying, outcome)
	return point, nil
}

// fillDay fetches the underlying and ATM legs for point.Date. A returned
// error means the day must be replaced by a placeholder.
func (s *ATMSeries) fillDay(
	ctx context.Context,
	log *xlogger.Logger,
	point *models.ATMOptionDataPoint,
	contracts []models.OptionContract,
	byTicker map[string]models.OptionContract,
) (outcome string, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = DayFailed, fmt.Errorf("market data source panicked: %v", r)
		}
	}()

	asOf := point.Date
	start := time.Now()
	und := s.source.FetchReferenceFields(ctx, []string{point.UnderlyingTicker}, models.UnderlyingPriceFields, &asOf)
	s.metrics.RecordLatency("underlying_prices", time.Since(start).Seconds())
	if !und.Success() {
		return DayFailed, fmt.Errorf("underlying prices: %w", joinDetails(und.Errors))
	}
	if rec, ok := recordFor(und.Data, point.UnderlyingTicker); ok {
		point.UnderlyingSettle = rec.Fields.Float(models.FieldSettle)
		point.UnderlyingLast = rec.Fields.Float(models.FieldLast)
		point.UnderlyingBid = rec.Fields.Float(models.FieldBid)
		point.UnderlyingAsk = rec.Fields.Float(models.FieldAsk)
	}

	ref, ok := ReferencePrice(point.UnderlyingSettle, point.UnderlyingLast)
	if !ok {
		log.Debug("no reference price", xlogger.Date("date", point.Date))
		return DayNoPrice, nil
	}

	window := FilterStrikeWindow(contracts, *point.OptionExpiry, ref, s.policy.StrikeRangePct)
	strike, ok := NearestStrike(ref, strikesOf(window))
	if !ok {
		log.Debug("no strike in window",
			xlogger.Date("date", point.Date),
			xlogger.Float64("reference", ref),
			xlogger.Float64("pct", s.policy.StrikeRangePct),
		)
		return DayNoStrike, nil
	}

	legs := SplitCallPut(ContractsAtStrike(window, strike))
	if len(legs.Duplicates) > 0 {
		log.Debug("duplicate listings at strike, keeping first seen",
			xlogger.Float64("strike", strike),
			xlogger.String("call", legs.Call),
			xlogger.String("put", legs.Put),
			xlogger.Strings("ignored", legs.Duplicates),
		)
	}
	tickers := make([]string, 0, 2)
	for _, t := range []string{legs.Call, legs.Put} {
		if t != "" {
			tickers = append(tickers, t)
		}
	}

	start = time.Now()
	opts := s.source.FetchReferenceFields(ctx, tickers, models.OptionMarketFields, &asOf)
	s.metrics.RecordLatency("option_prices", time.Since(start).Seconds())
	if !opts.Success() {
		return DayFailed, fmt.Errorf("option prices: %w", joinDetails(opts.Errors))
	}
	for _, rec := range opts.Data {
		c, ok := byTicker[rec.Security]
		if !ok || (rec.Security != legs.Call && rec.Security != legs.Put) {
			continue
		}
		if len(rec.Errors) > 0 {
			log.Debug("option leg unavailable", xlogger.String("ticker", rec.Security), xlogger.Strings("errors", rec.Errors))
			continue
		}
		md := MarketDataFromFields(c, point.Date, rec.Fields)
		if c.IsCall() {
			point.Call = &md
		} else {
			point.Put = &md
		}
	}
	return DayOK, nil
}

func recordFor(records []models.ReferenceRecord, security string) (models.ReferenceRecord, bool) {
	for _, r := range records {
		if r.Security == security {
			return r, len(r.Errors) == 0
		}
	}
	return models.ReferenceRecord{}, false
}

func joinDetails(details []models.ErrorDetail) error {
	errs := make([]error, 0, len(details))
	for _, d := range details {
		errs = append(errs, d)
	}
	return errors.Join(errs...)
}
