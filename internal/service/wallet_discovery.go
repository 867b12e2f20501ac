package service

import (
	"context"
	"sort"
	"strings"

	"github.com/creator-analytics/internal/logging"
	"github.com/creator-analytics/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// Discovery defaults
const (
	DefaultDiscoverySampleSize = 20
	// DefaultDiscoveryMinCount is the smallest occurrence count that makes an
	// address a candidate, i.e. it must appear more than twice
	DefaultDiscoveryMinCount = 3
)

// DiscoverSecondaryWallet returns the creator address that occurs most often
// in the first DefaultDiscoverySampleSize edges of sample, provided it occurs
// more than twice and is not primary. It returns "" when there is no candidate.
func DiscoverSecondaryWallet(sample []types.Balance, primary string) string {
	return discoverSecondary(sample, primary, DefaultDiscoverySampleSize, DefaultDiscoveryMinCount)
}

func discoverSecondary(sample []types.Balance, primary string, sampleSize, minCount int) string {
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	primary = strings.ToLower(strings.TrimSpace(primary))

	counts := make(map[string]int)
	for _, b := range sample {
		addr := strings.ToLower(strings.TrimSpace(b.CreatorAddress))
		if addr == "" || addr == primary {
			continue
		}
		counts[addr]++
	}

	type candidate struct {
		address string
		count   int
	}
	candidates := make([]candidate, 0, len(counts))
	for addr, n := range counts {
		if n >= minCount {
			candidates = append(candidates, candidate{addr, n})
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].address < candidates[j].address
	})
	return candidates[0].address
}

// WalletDiscoverer finds the secondary wallet for a profile. Overrides win,
// then cached outcomes, then a fresh sample of the balance listing.
type WalletDiscoverer struct {
	balances   BalanceService
	overrides  map[string]string
	store      WalletOverrideStore
	cache      WalletCache
	sampleSize int
	minCount   int
}

// DiscovererConfig configures a WalletDiscoverer. Store and Cache are optional.
type DiscovererConfig struct {
	Overrides  map[string]string
	Store      WalletOverrideStore
	Cache      WalletCache
	SampleSize int
	MinCount   int
}

// NewWalletDiscoverer creates a new wallet discoverer
func NewWalletDiscoverer(balances BalanceService, cfg DiscovererConfig) *WalletDiscoverer {
	overrides := make(map[string]string, len(cfg.Overrides))
	for handle, wallet := range cfg.Overrides {
		overrides[strings.ToLower(strings.TrimSpace(handle))] = strings.ToLower(strings.TrimSpace(wallet))
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = DefaultDiscoverySampleSize
	}
	if cfg.MinCount <= 0 {
		cfg.MinCount = DefaultDiscoveryMinCount
	}
	return &WalletDiscoverer{
		balances:   balances,
		overrides:  overrides,
		store:      cfg.Store,
		cache:      cfg.Cache,
		sampleSize: cfg.SampleSize,
		minCount:   cfg.MinCount,
	}
}

// Discover returns the secondary wallet for profile, or "" when none is
// found. Failures are logged and never returned.
func (d *WalletDiscoverer) Discover(ctx context.Context, identifier string, profile *types.Profile) string {
	handle := strings.ToLower(strings.TrimSpace(profile.Handle))
	if handle == "" {
		handle = strings.ToLower(strings.TrimSpace(identifier))
	}
	logger := logging.FromContext(ctx).WithField("handle", handle)

	if wallet, ok := d.overrides[handle]; ok && common.IsHexAddress(wallet) {
		logger.WithField("wallet", wallet).Debug("Using static wallet override")
		return wallet
	}

	if d.store != nil {
		wallet, ok, err := d.store.Get(ctx, handle)
		switch {
		case err != nil:
			logger.WithError(err).Warn("DiscoveryDegraded: wallet override store unavailable")
		case ok && common.IsHexAddress(wallet):
			return strings.ToLower(wallet)
		case ok:
			logger.WithField("wallet", wallet).Warn("DiscoveryDegraded: ignoring stored override that is not an address")
		}
	}

	if d.cache != nil {
		if wallet, ok := d.cache.Get(ctx, handle); ok {
			return wallet
		}
	}

	page, err := d.balances.ListBalances(ctx, identifier, d.sampleSize, "")
	if err != nil {
		logger.WithError(err).Warn("DiscoveryDegraded: sample fetch failed, continuing without secondary wallet")
		return ""
	}
	if len(page.Edges) == 0 {
		logger.Warn("DiscoveryDegraded: empty sample, continuing without secondary wallet")
		return ""
	}

	wallet := discoverSecondary(page.Edges, profile.PublicWallet, d.sampleSize, d.minCount)
	if d.cache != nil {
		d.cache.Set(ctx, handle, wallet)
	}
	if wallet != "" {
		logger.WithField("wallet", wallet).Info("Discovered secondary wallet")
	}
	return wallet
}
