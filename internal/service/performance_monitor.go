package service

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/axiomhq/hyperloglog"
)

// Latency targets for analytics responses
const (
	CachedResponseTarget   = 100 * time.Millisecond
	ComputedResponseTarget = 5 * time.Second
)

// PerformanceMonitor tracks analytics response times, split by whether the
// result came from the result cache or was computed
type PerformanceMonitor struct {
	mu            sync.RWMutex
	cachedTimes   []time.Duration
	computedTimes []time.Duration
	cacheHits     int64
	cacheMisses   int64
	slowRequests  int64
	totalRequests int64
	maxSamples    int

	// creators estimates distinct identifiers served
	creators *hyperloglog.Sketch
}

// NewPerformanceMonitor creates a new performance monitor
func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{
		cachedTimes:   make([]time.Duration, 0, 1000),
		computedTimes: make([]time.Duration, 0, 1000),
		maxSamples:    1000, // Keep last 1000 samples
		creators:      hyperloglog.New14(),
	}
}

// ObserveCreator counts identifier towards the distinct creator estimate.
// Identifiers are expected to be normalized already.
func (pm *PerformanceMonitor) ObserveCreator(identifier string) {
	pm.mu.Lock()
	pm.creators.Insert([]byte(identifier))
	pm.mu.Unlock()
}

// RecordRequest records how long one analytics request took
func (pm *PerformanceMonitor) RecordRequest(duration time.Duration, cached bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.totalRequests++

	if cached {
		pm.cacheHits++
		pm.cachedTimes = appendSample(pm.cachedTimes, duration, pm.maxSamples)
		if duration > CachedResponseTarget {
			pm.slowRequests++
		}
		return
	}

	pm.cacheMisses++
	pm.computedTimes = appendSample(pm.computedTimes, duration, pm.maxSamples)
	if duration > ComputedResponseTarget {
		pm.slowRequests++
	}
}

func appendSample(samples []time.Duration, d time.Duration, max int) []time.Duration {
	samples = append(samples, d)
	if len(samples) > max {
		samples = samples[len(samples)-max:]
	}
	return samples
}

// GetStats returns current performance statistics
func (pm *PerformanceMonitor) GetStats() *PerformanceStats {
	// Write lock: estimating may merge the sketch's sparse buffer
	pm.mu.Lock()
	defer pm.mu.Unlock()

	stats := &PerformanceStats{
		TotalRequests: pm.totalRequests,
		CacheHits:     pm.cacheHits,
		CacheMisses:   pm.cacheMisses,
		SlowRequests:  pm.slowRequests,
	}
	stats.UniqueCreators = pm.creators.Estimate()

	if pm.totalRequests > 0 {
		stats.CacheHitRate = float64(pm.cacheHits) / float64(pm.totalRequests) * 100
	}

	stats.AvgCachedMs = averageMs(pm.cachedTimes)
	stats.AvgComputedMs = averageMs(pm.computedTimes)
	stats.P95CachedMs = percentileMs(pm.cachedTimes, 0.95)
	stats.P95ComputedMs = percentileMs(pm.computedTimes, 0.95)
	stats.P99ComputedMs = percentileMs(pm.computedTimes, 0.99)

	return stats
}

func averageMs(samples []time.Duration) float64 {
	if len(samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range samples {
		total += d
	}
	return float64(total.Milliseconds()) / float64(len(samples))
}

func percentileMs(samples []time.Duration, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return float64(sorted[idx].Milliseconds())
}

// Reset resets all performance metrics
func (pm *PerformanceMonitor) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.cachedTimes = make([]time.Duration, 0, 1000)
	pm.computedTimes = make([]time.Duration, 0, 1000)
	pm.cacheHits = 0
	pm.cacheMisses = 0
	pm.slowRequests = 0
	pm.totalRequests = 0
	pm.creators = hyperloglog.New14()
}

// CheckPerformance checks the recorded latencies against the targets
func (pm *PerformanceMonitor) CheckPerformance() *PerformanceCheck {
	stats := pm.GetStats()

	check := &PerformanceCheck{
		Passed: true,
		Issues: make([]string, 0),
	}

	targetMs := float64(CachedResponseTarget.Milliseconds())
	if stats.AvgCachedMs > targetMs {
		check.Passed = false
		check.Issues = append(check.Issues,
			fmt.Sprintf("Average cached response time (%.2fms) exceeds %.0fms threshold", stats.AvgCachedMs, targetMs))
	}

	if stats.P95CachedMs > targetMs {
		check.Passed = false
		check.Issues = append(check.Issues,
			fmt.Sprintf("P95 cached response time (%.2fms) exceeds %.0fms threshold", stats.P95CachedMs, targetMs))
	}

	// Hit rate is advisory only
	if stats.CacheHitRate < 50 && stats.TotalRequests > 100 {
		check.Issues = append(check.Issues,
			fmt.Sprintf("Result cache hit rate (%.2f%%) is below 50%% - consider a longer CACHE_RESULT_TTL", stats.CacheHitRate))
	}

	return check
}

// PerformanceStats contains performance statistics
type PerformanceStats struct {
	TotalRequests int64   `json:"totalRequests"`
	CacheHits     int64   `json:"cacheHits"`
	CacheMisses   int64   `json:"cacheMisses"`
	SlowRequests  int64   `json:"slowRequests"`
	CacheHitRate  float64 `json:"cacheHitRate"` // Percentage
	AvgCachedMs   float64 `json:"avgCachedMs"`
	AvgComputedMs float64 `json:"avgComputedMs"`
	P95CachedMs   float64 `json:"p95CachedMs"`
	P95ComputedMs float64 `json:"p95ComputedMs"`
	P99ComputedMs float64 `json:"p99ComputedMs"`

	// UniqueCreators is a HyperLogLog estimate (about 1.6% error)
	UniqueCreators uint64 `json:"uniqueCreators"`
}

// PerformanceCheck contains performance check results
type PerformanceCheck struct {
	Passed bool     `json:"passed"`
	Issues []string `json:"issues"`
}
