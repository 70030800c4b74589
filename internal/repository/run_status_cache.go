package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"OptRoll/internal/domain/models"
	domrepo "OptRoll/internal/domain/repository"
	xcache "OptRoll/pkg/cache"
)

// RunStatusCache keeps queued run status in the shared cache for ttl.
type RunStatusCache struct {
	cache xcache.Service
	ttl   time.Duration
}

func NewRunStatusCache(c xcache.Service, ttl time.Duration) *RunStatusCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RunStatusCache{cache: c, ttl: ttl}
}

var _ domrepo.RunStatusStore = (*RunStatusCache)(nil)

func (r *RunStatusCache) SaveRun(ctx context.Context, st models.RunStatus) error {
	if st.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := r.cache.Set(ctx, runKey(st.RunID), st, r.ttl); err != nil {
		return fmt.Errorf("save run %s: %w", st.RunID, err)
	}
	return nil
}

func (r *RunStatusCache) LoadRun(ctx context.Context, runID string) (models.RunStatus, error) {
	st, err := xcache.GetTyped[models.RunStatus](ctx, r.cache, runKey(runID))
	if errors.Is(err, xcache.ErrCacheMiss) {
		return models.RunStatus{}, domrepo.ErrRunNotFound
	}
	if err != nil {
		return models.RunStatus{}, fmt.Errorf("load run %s: %w", runID, err)
	}
	return st, nil
}

func runKey(id string) string { return xcache.GenerateKey("run", id) }
