package pipeline

import (
	"github.com/dropsight/sourcing-cli/internal/config"
	"github.com/dropsight/sourcing-cli/internal/model"
)

// Quality gate rejection reasons.
const (
	ReasonRatingBelowThreshold   = "rating_below_threshold"
	ReasonFeedbackBelowThreshold = "feedback_below_threshold"
	ReasonInsufficientOrders     = "insufficient_order_history"
)

// EvaluateQuality implements Stage 2: a binary rule bank evaluated in fixed
// order, first failure short-circuits. A low-quality product gets no
// economic analysis, so this is the only stage allowed to stop the pipeline
// before margin and saturation run.
func EvaluateQuality(snap *model.ProductSnapshot, cfg config.QualityConfig) model.StageResult {
	metrics := map[string]float64{
		"rating":        snap.Rating,
		"feedback_rate": snap.FeedbackRate,
		"order_count":   float64(snap.OrderCount),
	}

	fail := func(reason string) model.StageResult {
		return model.StageResult{
			Stage:   model.StageQuality,
			Passed:  false,
			Metrics: metrics,
			Reason:  reason,
		}
	}

	if snap.Rating < cfg.MinRating {
		return fail(ReasonRatingBelowThreshold)
	}
	if snap.FeedbackRate < cfg.MinFeedbackRate {
		return fail(ReasonFeedbackBelowThreshold)
	}
	// MinOrders of 0 disables the rule.
	if cfg.MinOrders > 0 && snap.OrderCount < cfg.MinOrders {
		return fail(ReasonInsufficientOrders)
	}

	return model.StageResult{
		Stage:   model.StageQuality,
		Passed:  true,
		Metrics: metrics,
	}
}
