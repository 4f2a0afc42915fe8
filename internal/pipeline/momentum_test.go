package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dropsight/sourcing-cli/internal/model"
)

func TestAnalyzeMomentum_Bands(t *testing.T) {
	cfg := testConfig().Momentum

	tests := []struct {
		name       string
		orderCount int
		ageMonths  int
		wantScore  float64
	}{
		{"zero orders", 0, 12, 0},
		{"weak band midpoint", 30, 12, 15},   // 2.5/mo → 30*2.5/5
		{"weak-moderate boundary", 60, 12, 30}, // 5/mo
		{"moderate band", 300, 12, 47.78},    // 25/mo → 30+40*20/45
		{"strong boundary", 600, 12, 70},     // 50/mo
		{"strong band", 600, 6, 73.33},       // 100/mo → 70+30*50/450
		{"at ceiling", 6000, 12, 100},        // 500/mo
		{"beyond ceiling", 60000, 12, 100},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			snap := testSnapshot()
			snap.OrderCount = tc.orderCount
			snap.StoreAgeMonths = tc.ageMonths

			result, report := AnalyzeMomentum(snap, cfg)

			assert.True(t, result.Passed, "momentum never gates")
			assert.Equal(t, model.StageMomentum, result.Stage)
			assert.InDelta(t, tc.wantScore, report.Score, 0.01)
			assert.False(t, report.LowConfidence)
		})
	}
}

func TestAnalyzeMomentum_MonotonicInOrdersPerMonth(t *testing.T) {
	cfg := testConfig().Momentum

	prev := -1.0
	for orders := 0; orders <= 12000; orders += 60 {
		snap := testSnapshot()
		snap.OrderCount = orders
		snap.StoreAgeMonths = 12

		_, report := AnalyzeMomentum(snap, cfg)
		assert.GreaterOrEqual(t, report.Score, prev,
			"score must be non-decreasing, broke at %d orders", orders)
		prev = report.Score
	}
}

func TestAnalyzeMomentum_ZeroAgeAvoidsDivisionByZero(t *testing.T) {
	snap := testSnapshot()
	snap.OrderCount = 40
	snap.StoreAgeMonths = 0

	_, report := AnalyzeMomentum(snap, testConfig().Momentum)
	assert.InDelta(t, 40.0, report.OrdersPerMonth, 1e-9)
}

func TestAnalyzeMomentum_UnknownAgeIsLowConfidenceNotRejection(t *testing.T) {
	snap := testSnapshot()
	snap.OrderCount = 5000
	snap.StoreAgeMonths = 0
	snap.AgeUnknown = true

	result, report := AnalyzeMomentum(snap, testConfig().Momentum)

	assert.True(t, result.Passed)
	assert.True(t, report.LowConfidence)
	// Lifetime volume with no age cannot claim the strong band.
	assert.LessOrEqual(t, report.Score, 70.0)
	assert.Equal(t, 1.0, result.Metrics["low_confidence"])
}
