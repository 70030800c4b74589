package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"OptRoll/internal/domain/models"
	drepo "OptRoll/internal/domain/repository"
	xcache "OptRoll/pkg/cache"
	xlogger "OptRoll/pkg/logger"

	"cloud.google.com/go/civil"
)

// CachedSource memoizes as-of reference lookups of fields that never change
// once a contract is listed. Price fields and historical requests always go
// to the wrapped source.
type CachedSource struct {
	inner  drepo.MarketDataSource
	cache  xcache.Service
	ttl    time.Duration
	logger *xlogger.Logger
}

func NewCachedSource(inner drepo.MarketDataSource, c xcache.Service, ttl time.Duration, logger *xlogger.Logger) *CachedSource {
	return &CachedSource{inner: inner, cache: c, ttl: ttl, logger: logger}
}

func (s *CachedSource) Open(ctx context.Context) error { return s.inner.Open(ctx) }
func (s *CachedSource) Close() error                   { return s.inner.Close() }

func (s *CachedSource) FetchHistoricalFields(ctx context.Context, securities []string, fields []models.FieldID, start, end civil.Date, periodicity models.Periodicity) models.Response[[]models.HistoricalRecord] {
	return s.inner.FetchHistoricalFields(ctx, securities, fields, start, end, periodicity)
}

func (s *CachedSource) FetchReferenceFields(ctx context.Context, securities []string, fields []models.FieldID, asOf *civil.Date) models.Response[[]models.ReferenceRecord] {
	if asOf == nil || !allStatic(fields) {
		return s.inner.FetchReferenceFields(ctx, securities, fields, asOf)
	}

	out := models.Response[[]models.ReferenceRecord]{Data: make([]models.ReferenceRecord, 0, len(securities))}
	misses := make([]string, 0, len(securities))
	for _, sec := range securities {
		var rec models.ReferenceRecord
		err := s.cache.Get(ctx, s.key(sec, fields, *asOf), &rec)
		switch {
		case err == nil:
			out.Data = append(out.Data, rec)
		case errors.Is(err, xcache.ErrCacheMiss):
			misses = append(misses, sec)
		default:
			s.logger.Warn("reference cache read failed", xlogger.String("security", sec), xlogger.Error(err))
			misses = append(misses, sec)
		}
	}
	if len(misses) == 0 {
		s.logger.Debug("reference cache hit", xlogger.Int("securities", len(securities)))
		return out
	}

	fresh := s.inner.FetchReferenceFields(ctx, misses, fields, asOf)
	out.Merge(fresh.Errors)
	for _, rec := range fresh.Data {
		out.Data = append(out.Data, rec)
		if len(rec.Errors) > 0 {
			continue
		}
		if err := s.cache.Set(ctx, s.key(rec.Security, fields, *asOf), rec, s.ttl); err != nil {
			s.logger.Warn("reference cache write failed", xlogger.String("security", rec.Security), xlogger.Error(err))
		}
	}
	return out
}

func (s *CachedSource) key(security string, fields []models.FieldID, asOf civil.Date) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return xcache.GenerateKey("ref", asOf.String(), xcache.HashKey(security+"|"+strings.Join(names, ",")))
}

func allStatic(fields []models.FieldID) bool {
	for _, f := range fields {
		if !models.IsStaticField(f) {
			return false
		}
	}
	return len(fields) > 0
}
