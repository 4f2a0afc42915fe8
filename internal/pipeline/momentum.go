package pipeline

import (
	"github.com/dropsight/sourcing-cli/internal/config"
	"github.com/dropsight/sourcing-cli/internal/model"
)

// AnalyzeMomentum implements Stage 1: estimate demand trajectory from order
// volume relative to store age. Informational only, never a hard gate.
func AnalyzeMomentum(snap *model.ProductSnapshot, cfg config.MomentumConfig) (model.StageResult, *model.MomentumReport) {
	age := snap.StoreAgeMonths
	if age < 1 {
		age = 1
	}
	ordersPerMonth := float64(snap.OrderCount) / float64(age)

	score := momentumScore(ordersPerMonth, cfg)

	// Unknown store age means ordersPerMonth is effectively lifetime volume,
	// which overstates velocity. The estimate is kept but capped below the
	// strong band and flagged low-confidence; it never causes rejection.
	lowConfidence := snap.AgeUnknown
	if lowConfidence && score > moderateMaxScore {
		score = moderateMaxScore
	}

	report := &model.MomentumReport{
		Score:          score,
		OrdersPerMonth: ordersPerMonth,
		LowConfidence:  lowConfidence,
	}

	metrics := map[string]float64{
		"orders_per_month": ordersPerMonth,
		"momentum_score":   score,
	}
	if lowConfidence {
		metrics["low_confidence"] = 1
	}

	return model.StageResult{
		Stage:   model.StageMomentum,
		Passed:  true,
		Metrics: metrics,
	}, report
}

const (
	weakMaxScore     = 30.0
	moderateMaxScore = 70.0
	strongMaxScore   = 100.0
)

// momentumScore maps orders/month onto a 0-100 scale with three bands
// (weak 0-30, moderate 30-70, strong 70-100), linear within each band.
// Monotonic non-decreasing in ordersPerMonth.
func momentumScore(ordersPerMonth float64, cfg config.MomentumConfig) float64 {
	weakMax := cfg.WeakMax
	if weakMax <= 0 {
		weakMax = 5
	}
	strongMin := cfg.StrongMin
	if strongMin <= weakMax {
		strongMin = weakMax * 10
	}
	ceiling := cfg.StrongCeiling
	if ceiling <= strongMin {
		ceiling = strongMin * 10
	}

	switch {
	case ordersPerMonth <= 0:
		return 0
	case ordersPerMonth < weakMax:
		return weakMaxScore * ordersPerMonth / weakMax
	case ordersPerMonth <= strongMin:
		return weakMaxScore + (moderateMaxScore-weakMaxScore)*(ordersPerMonth-weakMax)/(strongMin-weakMax)
	case ordersPerMonth >= ceiling:
		return strongMaxScore
	default:
		return moderateMaxScore + (strongMaxScore-moderateMaxScore)*(ordersPerMonth-strongMin)/(ceiling-strongMin)
	}
}
