package service

import (
	"github.com/creator-analytics/internal/types"
	"github.com/shopspring/decimal"
)

// Metric assumptions
const (
	// DefaultFeeRate is the creator fee assumed on all volume
	DefaultFeeRate = 0.05
	// DefaultTraderRatio is the share of holders assumed to be traders
	DefaultTraderRatio = 0.2
)

// ComputeMetrics folds enriched created assets into summary metrics using
// the default fee rate and trader ratio. posts is the number of created
// assets before truncation.
func ComputeMetrics(enriched []types.EnrichedBalance, posts int) types.Metrics {
	return computeMetrics(enriched, posts, DefaultFeeRate, DefaultTraderRatio)
}

func computeMetrics(enriched []types.EnrichedBalance, posts int, feeRate, traderRatio float64) types.Metrics {
	ratio := decimal.NewFromFloat(traderRatio)

	totalVolume := decimal.Zero
	var traders, collectors int64

	for _, item := range enriched {
		holders := item.UniqueHolders
		if item.Detail != nil {
			totalVolume = totalVolume.Add(decimal.NewFromFloat(item.Detail.TotalVolume))
			holders = item.Detail.UniqueHolders
		}
		if holders <= 0 {
			continue
		}
		t := decimal.NewFromInt(holders).Mul(ratio).Floor().IntPart()
		traders += t
		collectors += holders - t
	}

	earnings := totalVolume.Mul(decimal.NewFromFloat(feeRate))

	m := types.Metrics{
		TotalVolume:         totalVolume.InexactFloat64(),
		TotalEarnings:       earnings.InexactFloat64(),
		Posts:               posts,
		EstimatedTraders:    traders,
		EstimatedCollectors: collectors,
	}
	if posts > 0 {
		m.AverageEarningsPerPost = earnings.Div(decimal.NewFromInt(int64(posts))).InexactFloat64()
	}
	return m
}
