package service

import (
	"github.com/creator-analytics/internal/types"
)

// Classify partitions balances into those minted by a member of wallets and
// the rest. IsCreator is set on every returned balance; order is preserved
// within each partition. Both slices are non-nil.
func Classify(balances []types.Balance, wallets types.WalletSet) (created, collected []types.Balance) {
	created = make([]types.Balance, 0)
	collected = make([]types.Balance, 0, len(balances))

	for _, b := range balances {
		b.IsCreator = b.CreatorAddress != "" && wallets.Contains(b.CreatorAddress)
		if b.IsCreator {
			created = append(created, b)
		} else {
			collected = append(collected, b)
		}
	}
	return created, collected
}
