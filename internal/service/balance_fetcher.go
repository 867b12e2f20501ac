package service

import (
	"context"

	apperrors "github.com/creator-analytics/internal/errors"
	"github.com/creator-analytics/internal/logging"
	"github.com/creator-analytics/internal/ratelimit"
	"github.com/creator-analytics/internal/types"
)

// DefaultPageSize is the number of edges requested per listing page
const DefaultPageSize = 50

// PageStats describes one walk of the balance listing
type PageStats struct {
	PagesFetched int
	Budget       int
	// Truncated is set when the budget ran out while a next cursor remained
	Truncated bool
}

// BalanceFetcher walks the cursor-based balance listing
type BalanceFetcher struct {
	balances BalanceService
	pageSize int
}

// NewBalanceFetcher creates a new balance fetcher
func NewBalanceFetcher(balances BalanceService, pageSize int) *BalanceFetcher {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &BalanceFetcher{balances: balances, pageSize: pageSize}
}

// FetchAll fetches pages sequentially until a page is empty, no cursor is
// returned, or the mode's page budget is spent. Any page error fails the
// whole walk.
func (f *BalanceFetcher) FetchAll(ctx context.Context, identifier string, mode types.Mode) ([]types.Balance, PageStats, error) {
	stats := PageStats{Budget: mode.PageBudget()}
	balances := make([]types.Balance, 0, f.pageSize)
	cursor := ""

	for stats.PagesFetched < stats.Budget {
		if err := ctx.Err(); err != nil {
			return nil, stats, apperrors.NewUpstreamFetchError(ratelimit.OpListBalances, err)
		}

		page, err := f.balances.ListBalances(ctx, identifier, f.pageSize, cursor)
		if err != nil {
			catErr := apperrors.NewUpstreamFetchError(ratelimit.OpListBalances, err)
			catErr.Details["page"] = stats.PagesFetched + 1
			return nil, stats, catErr
		}
		stats.PagesFetched++

		balances = append(balances, page.Edges...)

		if len(page.Edges) == 0 || page.NextCursor == "" {
			cursor = ""
			break
		}
		cursor = page.NextCursor
	}

	stats.Truncated = cursor != ""

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"identifier": identifier,
		"mode":       mode,
		"pages":      stats.PagesFetched,
		"budget":     stats.Budget,
		"balances":   len(balances),
		"truncated":  stats.Truncated,
	}).Debug("Fetched balance listing")

	return balances, stats, nil
}
