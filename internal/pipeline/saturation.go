package pipeline

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dropsight/sourcing-cli/internal/config"
	"github.com/dropsight/sourcing-cli/internal/model"
)

// Matcher decides whether a tracked store already sells a product matching
// the candidate. The strategy is configuration-supplied; callers may plug in
// their own.
type Matcher interface {
	Matches(snap *model.ProductSnapshot, store model.TrackedStore) (bool, error)
}

// CheckSaturation implements Stage 4: cross-reference the candidate against
// the caller's tracked stores. Advisory only, never a rejection. A malformed
// tracked-store record is skipped, not fatal.
func CheckSaturation(snap *model.ProductSnapshot, stores []model.TrackedStore, matcher Matcher, cfg config.SaturationConfig) (model.StageResult, *model.SaturationReport) {
	matched := make([]string, 0, len(stores))

	for _, store := range stores {
		ok, err := matcher.Matches(snap, store)
		if err != nil {
			zap.L().Warn("saturation: skipping tracked store",
				zap.String("store_id", store.StoreID),
				zap.String("domain", store.Domain),
				zap.Error(err),
			)
			continue
		}
		if ok {
			matched = append(matched, store.StoreID)
		}
	}

	report := &model.SaturationReport{
		Risk:            riskBand(len(matched), cfg),
		MatchedStoreIDs: matched,
	}

	return model.StageResult{
		Stage:  model.StageSaturation,
		Passed: true,
		Metrics: map[string]float64{
			"tracked_stores": float64(len(stores)),
			"matched_stores": float64(len(matched)),
		},
	}, report
}

// riskBand is monotonic non-decreasing in the match count. An empty
// tracked-store set yields Low: no evidence of saturation, not "unknown".
func riskBand(matches int, cfg config.SaturationConfig) model.SaturationRisk {
	mediumMin := cfg.MediumMin
	if mediumMin <= 0 {
		mediumMin = 1
	}
	highMin := cfg.HighMin
	if highMin <= mediumMin {
		highMin = mediumMin + 2
	}

	switch {
	case matches >= highMin:
		return model.SaturationHigh
	case matches >= mediumMin:
		return model.SaturationMedium
	default:
		return model.SaturationLow
	}
}

// HeuristicMatcher is the default matcher: an exact product-ID hit is a
// match; otherwise the candidate's title and category tokens are compared
// against the store's category tokens with a Jaccard threshold.
type HeuristicMatcher struct {
	cfg config.SaturationConfig
}

// NewHeuristicMatcher creates the default matcher from config.
func NewHeuristicMatcher(cfg config.SaturationConfig) *HeuristicMatcher {
	return &HeuristicMatcher{cfg: cfg}
}

func (m *HeuristicMatcher) Matches(snap *model.ProductSnapshot, store model.TrackedStore) (bool, error) {
	if store.StoreID == "" {
		return false, eris.New("tracked store record has no store ID")
	}

	if store.SellsProduct(snap.ProductID) {
		return true, nil
	}

	storeTokens := tokenSet(store.ProductCategories...)
	if len(storeTokens) == 0 {
		return false, nil
	}

	candidateTokens := tokenSet(append([]string{snap.Title}, snap.Categories...)...)
	sim := jaccard(candidateTokens, storeTokens)

	threshold := m.cfg.TitleSimilarity
	if threshold <= 0 {
		threshold = 0.35
	}
	return sim >= threshold, nil
}

// tokenSet lowercases and splits inputs on non-alphanumeric runes, dropping
// single-character tokens.
func tokenSet(inputs ...string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, input := range inputs {
		fields := strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
			return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
		})
		for _, f := range fields {
			if len(f) > 1 {
				set[f] = struct{}{}
			}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
