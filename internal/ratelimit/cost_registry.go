package ratelimit

import (
	"sort"
	"sync"
)

// DefaultCost is charged for operations the registry does not know
const DefaultCost = 1

// Upstream operation names. The adapter labels every call with one of these.
const (
	OpResolveProfile      = "resolveProfile"
	OpListBalances        = "listBalances"
	OpGetAssetDetail      = "getAssetDetail"
	OpCountCoinsByCreator = "countCoinsByCreator"
)

// Known operation costs in budget units. A balance page is the
// heaviest query the platform serves.
const (
	CostResolveProfile      = 1
	CostListBalances        = 3
	CostGetAssetDetail      = 1
	CostCountCoinsByCreator = 2
)

// CostRegistry maps upstream operations to their budget cost.
// It is safe for concurrent use.
type CostRegistry struct {
	mu          sync.RWMutex
	costs       map[string]int
	defaultCost int
}

// CostRegistryConfig holds configuration for the registry.
type CostRegistryConfig struct {
	// DefaultCost is charged for unknown operations. Zero uses DefaultCost.
	DefaultCost int

	// Overrides replace the built-in cost of specific operations.
	Overrides map[string]int
}

// NewCostRegistry creates a registry with the built-in operation costs.
// cfg may be nil.
func NewCostRegistry(cfg *CostRegistryConfig) *CostRegistry {
	costs := map[string]int{
		OpResolveProfile:      CostResolveProfile,
		OpListBalances:        CostListBalances,
		OpGetAssetDetail:      CostGetAssetDetail,
		OpCountCoinsByCreator: CostCountCoinsByCreator,
	}

	defaultCost := DefaultCost

	if cfg != nil {
		if cfg.DefaultCost > 0 {
			defaultCost = cfg.DefaultCost
		}
		for op, cost := range cfg.Overrides {
			if cost > 0 {
				costs[op] = cost
			}
		}
	}

	return &CostRegistry{
		costs:       costs,
		defaultCost: defaultCost,
	}
}

// GetCost returns the cost of an operation, or the default for unknown ones.
func (r *CostRegistry) GetCost(op string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cost, ok := r.costs[op]; ok {
		return cost
	}
	return r.defaultCost
}

// SetCost updates the cost of an operation. Non-positive costs are ignored.
func (r *CostRegistry) SetCost(op string, cost int) {
	if cost <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.costs[op] = cost
}

// KnownOperations returns the registered operation names, sorted.
func (r *CostRegistry) KnownOperations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ops := make([]string, 0, len(r.costs))
	for op := range r.costs {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}
