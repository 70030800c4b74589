package usecase

import (
	"context"
	"fmt"
	"sort"

	"OptRoll/internal/domain/models"
	drepo "OptRoll/internal/domain/repository"
	xlogger "OptRoll/pkg/logger"

	"cloud.google.com/go/civil"
)

var DefaultHistoryFields = []models.FieldID{
	models.FieldSettle, models.FieldLast, models.FieldBid, models.FieldAsk,
	models.FieldVolume, models.FieldOpenInterest,
}

type ChainRequest struct {
	Underlying string
	// Expiry selects the chain; nil picks the nearest expiry on or after AsOf
	// that passes Filter.
	Expiry *civil.Date
	AsOf   *civil.Date
	Filter models.ChainFilter
}

type HistoryRequest struct {
	Tickers     []string
	Fields      []models.FieldID
	Start       civil.Date
	End         civil.Date
	Periodicity models.Periodicity
}

// ChainSnapshot serves one-off chain and history lookups outside the rolled
// series.
type ChainSnapshot struct {
	source    drepo.MarketDataSource
	discovery *ChainDiscovery
	policy    ATMPolicy
	logger    *xlogger.Logger
}

func NewChainSnapshot(source drepo.MarketDataSource, policy ATMPolicy, logger *xlogger.Logger, metrics drepo.Metrics) *ChainSnapshot {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &ChainSnapshot{
		source:    source,
		discovery: NewChainDiscovery(source, policy, logger, metrics),
		policy:    policy,
		logger:    logger,
	}
}

// Fetch returns market data for every contract of a single expiry, calls
// first, each side ordered by strike.
func (s *ChainSnapshot) Fetch(ctx context.Context, req ChainRequest) (models.Response[[]models.OptionMarketData], error) {
	out := models.Response[[]models.OptionMarketData]{Data: []models.OptionMarketData{}}
	if req.Underlying == "" {
		return out, ErrEmptyUnderlying
	}
	if err := s.source.Open(ctx); err != nil {
		out.AddError(models.NewErrorDetail(models.ErrKindDiscovery, "open market data session", err, nil))
		return out, nil
	}
	defer s.source.Close()

	chain := s.discovery.DiscoverChain(ctx, req.Underlying, req.AsOf)
	out.Merge(chain.Errors)
	if len(chain.Data) == 0 {
		return out, nil
	}
	resolved := s.discovery.ResolveContracts(ctx, chain.Data, req.Underlying, req.AsOf)
	out.Merge(resolved.Errors)

	matching := make([]models.OptionContract, 0, len(resolved.Data))
	for _, c := range resolved.Data {
		if req.Filter.Matches(c) {
			matching = append(matching, c)
		}
	}

	expiry, ok := pickChainExpiry(matching, req.Expiry, req.AsOf)
	if !ok {
		s.logger.Debug("no expiry matches chain filter", xlogger.String("underlying", req.Underlying))
		return out, nil
	}

	selected := make([]models.OptionContract, 0)
	byTicker := make(map[string]models.OptionContract)
	for _, c := range matching {
		if c.Expiry == expiry {
			selected = append(selected, c)
			byTicker[c.Ticker] = c
		}
	}

	asOf := expiry
	if req.AsOf != nil {
		asOf = *req.AsOf
	}
	size := s.policy.batchSize()
	for i := 0; i < len(selected); i += size {
		end := min(i+size, len(selected))
		tickers := make([]string, 0, end-i)
		for _, c := range selected[i:end] {
			tickers = append(tickers, c.Ticker)
		}
		resp := s.source.FetchReferenceFields(ctx, tickers, models.OptionMarketFields, req.AsOf)
		for _, e := range resp.Errors {
			out.AddError(models.NewErrorDetail(models.ErrKindSourceRequest, "chain market data batch failed", e,
				errorContext("underlying", req.Underlying, "batch", i/size)))
		}
		for _, rec := range resp.Data {
			c, ok := byTicker[rec.Security]
			if !ok || len(rec.Errors) > 0 {
				continue
			}
			out.Data = append(out.Data, MarketDataFromFields(c, asOf, rec.Fields))
		}
	}

	sort.SliceStable(out.Data, func(i, j int) bool {
		a, b := out.Data[i].Contract, out.Data[j].Contract
		if a.OptionType != b.OptionType {
			return a.IsCall()
		}
		return a.Strike < b.Strike
	})
	return out, nil
}

func pickChainExpiry(contracts []models.OptionContract, want, asOf *civil.Date) (civil.Date, bool) {
	if want != nil {
		for _, c := range contracts {
			if c.Expiry == *want {
				return *want, true
			}
		}
		return civil.Date{}, false
	}
	var best *civil.Date
	for _, c := range contracts {
		if asOf != nil && c.Expiry.Before(*asOf) {
			continue
		}
		if best == nil || c.Expiry.Before(*best) {
			e := c.Expiry
			best = &e
		}
	}
	if best == nil {
		return civil.Date{}, false
	}
	return *best, true
}

// History pulls historical fields for explicit tickers in batches.
func (s *ChainSnapshot) History(ctx context.Context, req HistoryRequest) (models.Response[[]models.HistoricalRecord], error) {
	out := models.Response[[]models.HistoricalRecord]{Data: []models.HistoricalRecord{}}
	if req.End.Before(req.Start) {
		return out, fmt.Errorf("%w: %s > %s", ErrInvalidDateRange, req.Start, req.End)
	}
	if len(req.Tickers) == 0 {
		return out, nil
	}
	fields := req.Fields
	if len(fields) == 0 {
		fields = DefaultHistoryFields
	}
	periodicity := req.Periodicity
	if periodicity == "" {
		periodicity = models.PeriodicityDaily
	}

	if err := s.source.Open(ctx); err != nil {
		out.AddError(models.NewErrorDetail(models.ErrKindSourceRequest, "open market data session", err, nil))
		return out, nil
	}
	defer s.source.Close()

	size := s.policy.batchSize()
	for i := 0; i < len(req.Tickers); i += size {
		end := min(i+size, len(req.Tickers))
		resp := s.source.FetchHistoricalFields(ctx, req.Tickers[i:end], fields, req.Start, req.End, periodicity)
		out.Merge(resp.Errors)
		out.Data = append(out.Data, resp.Data...)
	}
	sort.SliceStable(out.Data, func(i, j int) bool {
		if out.Data[i].Security != out.Data[j].Security {
			return out.Data[i].Security < out.Data[j].Security
		}
		return out.Data[i].Date.Before(out.Data[j].Date)
	})
	return out, nil
}
