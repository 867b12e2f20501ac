// Package service implements the creator analytics aggregation engine.
package service

import (
	"context"

	"github.com/creator-analytics/internal/storage"
	"github.com/creator-analytics/internal/types"
)

// Upstream collaborators, implemented by adapter.CoinClient

// ProfileService resolves a handle or address to a profile
type ProfileService interface {
	ResolveProfile(ctx context.Context, identifier string) (*types.Profile, error)
}

// BalanceService pages through the balances held by an identity
type BalanceService interface {
	ListBalances(ctx context.Context, identifier string, pageSize int, cursor string) (*types.BalancePage, error)
}

// AssetDetailService fetches per-token enrichment records
type AssetDetailService interface {
	GetAssetDetail(ctx context.Context, address string) (*types.AssetDetail, error)
}

// CoinCountService counts the coins minted by a wallet
type CoinCountService interface {
	CountCoinsByCreator(ctx context.Context, wallet string) (int, error)
}

// Caches and stores, implemented in internal/storage

// DetailCache caches asset details by token address
type DetailCache interface {
	Get(ctx context.Context, address string) (*types.AssetDetail, bool)
	Set(ctx context.Context, address string, detail *types.AssetDetail)
}

// ResultCache caches whole aggregated results
type ResultCache interface {
	Get(ctx context.Context, key storage.ResultKey) (*types.AggregatedResult, bool)
	Set(ctx context.Context, key storage.ResultKey, result *types.AggregatedResult)
}

// WalletCache caches discovery outcomes per handle
type WalletCache interface {
	Get(ctx context.Context, handle string) (string, bool)
	Set(ctx context.Context, handle, wallet string)
}

// WalletOverrideStore holds persisted handle to wallet overrides
type WalletOverrideStore interface {
	Get(ctx context.Context, handle string) (string, bool, error)
}

// statsReporter is implemented by the storage caches
type statsReporter interface {
	Stats() storage.CacheStats
}
