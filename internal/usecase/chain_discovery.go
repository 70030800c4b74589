package usecase

import (
	"context"
	"fmt"
	"time"

	"OptRoll/internal/domain/models"
	drepo "OptRoll/internal/domain/repository"
	xlogger "OptRoll/pkg/logger"

	"cloud.google.com/go/civil"
)

// ChainDiscovery turns an underlying into resolved option contracts. Both
// calls are expensive and are meant to run once per series.
type ChainDiscovery struct {
	source  drepo.MarketDataSource
	policy  ATMPolicy
	logger  *xlogger.Logger
	metrics drepo.Metrics
}

func NewChainDiscovery(source drepo.MarketDataSource, policy ATMPolicy, logger *xlogger.Logger, metrics drepo.Metrics) *ChainDiscovery {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &ChainDiscovery{source: source, policy: policy, logger: logger, metrics: metrics}
}

// DiscoverChain lists the raw identifiers of every option listed on
// underlying as of asOf. An underlying without listed options yields an
// empty list and no error.
func (d *ChainDiscovery) DiscoverChain(ctx context.Context, underlying string, asOf *civil.Date) models.Response[[]string] {
	out := models.Response[[]string]{Data: []string{}}
	if underlying == "" {
		out.AddError(models.NewErrorDetail(models.ErrKindDiscovery, "underlying is required", nil, nil))
		return out
	}

	start := time.Now()
	resp := d.source.FetchReferenceFields(ctx, []string{underlying}, []models.FieldID{models.FieldChain}, asOf)
	d.metrics.RecordLatency("discover_chain", time.Since(start).Seconds())

	for _, e := range resp.Errors {
		out.AddError(models.NewErrorDetail(models.ErrKindDiscovery,
			fmt.Sprintf("chain request for %s failed", underlying), e, errorContext("underlying", underlying)))
	}

	seen := make(map[string]struct{})
	for _, rec := range resp.Data {
		for _, msg := range rec.Errors {
			out.AddError(models.NewErrorDetail(models.ErrKindDiscovery, msg, nil,
				errorContext("underlying", underlying, "security", rec.Security)))
		}
		for _, t := range rec.Fields.Strings(models.FieldChain) {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out.Data = append(out.Data, t)
		}
	}

	d.logger.Debug("chain discovered",
		xlogger.String("underlying", underlying),
		xlogger.Int("tickers", len(out.Data)),
	)
	return out
}

// ResolveContracts fetches descriptive fields for rawTickers in batches and
// materializes contracts. Tickers missing a required field are dropped; a
// failed batch is recorded and skipped.
func (d *ChainDiscovery) ResolveContracts(ctx context.Context, rawTickers []string, underlying string, asOf *civil.Date) models.Response[[]models.OptionContract] {
	out := models.Response[[]models.OptionContract]{Data: []models.OptionContract{}}
	size := d.policy.batchSize()

	for i := 0; i < len(rawTickers); i += size {
		end := i + size
		if end > len(rawTickers) {
			end = len(rawTickers)
		}
		batch := rawTickers[i:end]

		start := time.Now()
		resp := d.source.FetchReferenceFields(ctx, batch, models.ContractFields, asOf)
		d.metrics.RecordLatency("resolve_contracts", time.Since(start).Seconds())

		if !resp.Success() {
			for _, e := range resp.Errors {
				out.AddError(models.NewErrorDetail(models.ErrKindDiscovery, "contract batch failed", e,
					errorContext("underlying", underlying, "batch", i/size, "size", len(batch))))
			}
			d.metrics.RecordError(string(models.ErrKindDiscovery))
			if len(resp.Data) == 0 {
				continue
			}
		}

		for _, rec := range resp.Data {
			c, ok := d.contractFromRecord(rec, underlying)
			if !ok {
				d.logger.Debug("dropping unresolvable ticker",
					xlogger.String("ticker", rec.Security),
					xlogger.Strings("errors", rec.Errors),
				)
				continue
			}
			out.Data = append(out.Data, c)
		}
	}

	d.logger.Debug("contracts resolved",
		xlogger.String("underlying", underlying),
		xlogger.Int("requested", len(rawTickers)),
		xlogger.Int("resolved", len(out.Data)),
	)
	return out
}

func (d *ChainDiscovery) contractFromRecord(rec models.ReferenceRecord, underlying string) (models.OptionContract, bool) {
	c, ok := ContractFromFields(rec.Security, rec.Fields, underlying)
	if ok {
		return c, true
	}
	if d.policy.TickerParseFallback {
		if parsed, ok := models.ParseTicker(rec.Security); ok {
			if parsed.Underlying == "" {
				parsed.Underlying = underlying
			}
			return parsed, true
		}
	}
	return models.OptionContract{}, false
}

// ContractFromFields builds a contract from reference fields. The underlying
// field falls back to fallbackUnderlying.
func ContractFromFields(ticker string, f models.FieldValues, fallbackUnderlying string) (models.OptionContract, bool) {
	strike := f.Float(models.FieldStrike)
	if strike == nil || *strike <= 0 {
		return models.OptionContract{}, false
	}
	expiry, ok := f.Date(models.FieldExpiry)
	if !ok {
		return models.OptionContract{}, false
	}
	flag, ok := f.String(models.FieldPutCall)
	if !ok {
		return models.OptionContract{}, false
	}
	typ, ok := models.ParseOptionType(flag)
	if !ok {
		return models.OptionContract{}, false
	}
	und, ok := f.String(models.FieldUnderlying)
	if !ok {
		und = fallbackUnderlying
	}
	return models.OptionContract{
		Ticker:     ticker,
		Strike:     *strike,
		Expiry:     expiry,
		OptionType: typ,
		Underlying: und,
	}, true
}
