package pipeline

import (
	"go.uber.org/zap"

	"github.com/dropsight/sourcing-cli/internal/config"
	"github.com/dropsight/sourcing-cli/internal/model"
)

// Analyzer sequences the four stages and assembles the final result. It
// performs no business arithmetic of its own; each stage stays independently
// testable. Analyzer is stateless apart from configuration, so one instance
// may serve concurrent analyses.
type Analyzer struct {
	cfg     *config.Config
	matcher Matcher
}

// New creates an Analyzer. A nil matcher selects the default heuristic
// matcher from config.
func New(cfg *config.Config, matcher Matcher) *Analyzer {
	if matcher == nil {
		matcher = NewHeuristicMatcher(cfg.Saturation)
	}
	return &Analyzer{cfg: cfg, matcher: matcher}
}

// Analyze runs the pipeline: Momentum → QualityGate → Margin → Saturation,
// with early exit on a quality or margin rejection. Stages after the
// rejecting one are skipped entirely, so their reports stay nil.
// Deterministic for fixed inputs and configuration.
func (a *Analyzer) Analyze(snap *model.ProductSnapshot, trackedStores []model.TrackedStore) *model.AnalysisResult {
	log := zap.L().With(
		zap.String("product_id", snap.ProductID),
		zap.String("title", snap.Title),
	)

	result := &model.AnalysisResult{}

	// Stage 1: Momentum (informational, always passes).
	momentumResult, momentum := AnalyzeMomentum(snap, a.cfg.Momentum)
	result.Stages = append(result.Stages, momentumResult)
	result.Momentum = momentum

	// Stage 2: Quality gate.
	qualityResult := EvaluateQuality(snap, a.cfg.Quality)
	result.Stages = append(result.Stages, qualityResult)
	if !qualityResult.Passed {
		return a.reject(result, qualityResult, log)
	}

	// Stage 3: Margin.
	marginResult, margin := CalculateMargin(snap, momentum.OrdersPerMonth, a.cfg.Margin)
	result.Stages = append(result.Stages, marginResult)
	result.Margin = margin
	if !marginResult.Passed {
		return a.reject(result, marginResult, log)
	}

	// Stage 4: Saturation (advisory, always passes).
	saturationResult, saturation := CheckSaturation(snap, trackedStores, a.matcher, a.cfg.Saturation)
	result.Stages = append(result.Stages, saturationResult)
	result.Saturation = saturation

	result.Verdict = model.VerdictAccepted
	log.Info("analysis accepted",
		zap.Float64("momentum_score", momentum.Score),
		zap.String("suggested_price", margin.SuggestedPrice.String()),
		zap.String("saturation_risk", string(saturation.Risk)),
	)
	return result
}

func (a *Analyzer) reject(result *model.AnalysisResult, stage model.StageResult, log *zap.Logger) *model.AnalysisResult {
	result.Verdict = model.VerdictRejected
	result.RejectionStage = stage.Stage
	result.RejectionReason = stage.Reason
	log.Info("analysis rejected",
		zap.String("stage", string(stage.Stage)),
		zap.String("reason", stage.Reason),
	)
	return result
}
