package usecase

import (
	"context"
	"sync"

	"OptRoll/internal/domain/models"
)

// SerialRunner is the entry point for callers that may run concurrently. The
// market data session behind ATMSeries and ChainSnapshot is not safe for
// concurrent use, so every call holds one lock.
type SerialRunner struct {
	mu     sync.Mutex
	series *ATMSeries
	chain  *ChainSnapshot
}

func NewSerialRunner(series *ATMSeries, chain *ChainSnapshot) *SerialRunner {
	return &SerialRunner{series: series, chain: chain}
}

func (r *SerialRunner) Series(ctx context.Context, req SeriesRequest) (models.Response[[]models.ATMOptionDataPoint], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.series.Run(ctx, req)
}

func (r *SerialRunner) Chain(ctx context.Context, req ChainRequest) (models.Response[[]models.OptionMarketData], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chain.Fetch(ctx, req)
}

func (r *SerialRunner) History(ctx context.Context, req HistoryRequest) (models.Response[[]models.HistoricalRecord], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chain.History(ctx, req)
}
