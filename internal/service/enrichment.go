package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/creator-analytics/internal/logging"
	"github.com/creator-analytics/internal/types"
	"golang.org/x/sync/singleflight"
)

// Enrichment defaults
const (
	DefaultEnrichBatchSize = 5
	DefaultEnrichLimit     = 25

	// DetailFetchTimeout bounds a shared fetch once it no longer follows
	// any single caller's context
	DetailFetchTimeout = 30 * time.Second
)

// Enricher attaches asset details to created balances. Batches run one after
// another; the members of a batch are fetched concurrently.
type Enricher struct {
	details   AssetDetailService
	cache     DetailCache
	batchSize int
	flight    singleflight.Group
}

// NewEnricher creates a new enricher. cache may be nil.
func NewEnricher(details AssetDetailService, cache DetailCache, batchSize int) *Enricher {
	if batchSize <= 0 {
		batchSize = DefaultEnrichBatchSize
	}
	return &Enricher{details: details, cache: cache, batchSize: batchSize}
}

// Enrich returns the first limit balances of created with their details.
// A failed lookup leaves that member's Detail nil and does not affect the
// others. The result is never nil.
func (e *Enricher) Enrich(ctx context.Context, created []types.Balance, limit int) []types.EnrichedBalance {
	if limit <= 0 {
		limit = DefaultEnrichLimit
	}
	if len(created) > limit {
		created = created[:limit]
	}

	out := make([]types.EnrichedBalance, len(created))
	for i, b := range created {
		out[i] = types.EnrichedBalance{Balance: b}
	}

	for start := 0; start < len(out); start += e.batchSize {
		if ctx.Err() != nil {
			logging.FromContext(ctx).WithField("remaining", len(out)-start).Warn("Enrichment stopped, context done")
			break
		}

		end := start + e.batchSize
		if end > len(out) {
			end = len(out)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(item *types.EnrichedBalance) {
				defer wg.Done()
				item.Detail = e.lookup(ctx, item.TokenAddress)
				item.Enriched = item.Detail != nil
			}(&out[i])
		}
		wg.Wait()
	}

	return out
}

// lookup returns a fresh cached detail or fetches one, sharing in-flight
// fetches for the same address. It returns nil on failure.
func (e *Enricher) lookup(ctx context.Context, address string) *types.AssetDetail {
	key := strings.ToLower(strings.TrimSpace(address))
	if key == "" {
		return nil
	}

	if e.cache != nil {
		if detail, ok := e.cache.Get(ctx, key); ok {
			return detail
		}
	}

	// Shared by every caller waiting on key, so detached from the first
	// caller's cancellation. Each caller stops waiting when its own ctx ends.
	ch := e.flight.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DetailFetchTimeout)
		defer cancel()

		detail, err := e.details.GetAssetDetail(fetchCtx, address)
		if err != nil {
			return nil, err
		}
		if e.cache != nil {
			e.cache.Set(fetchCtx, key, detail)
		}
		return detail, nil
	})

	select {
	case <-ctx.Done():
		logging.FromContext(ctx).WithField("tokenAddress", address).WithError(ctx.Err()).Debug("Stopped waiting for asset detail")
		return nil
	case res := <-ch:
		if res.Err != nil {
			logging.FromContext(ctx).WithField("tokenAddress", address).WithError(res.Err).Warn("Asset detail unavailable")
			return nil
		}
		detail, _ := res.Val.(*types.AssetDetail)
		return detail
	}
}
