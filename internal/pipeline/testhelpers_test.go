package pipeline

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dropsight/sourcing-cli/internal/config"
	"github.com/dropsight/sourcing-cli/internal/model"
)

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// testConfig mirrors the shipped defaults so stage tests do not depend on
// viper loading.
func testConfig() *config.Config {
	return &config.Config{
		Source: config.SourceConfig{
			DefaultCurrency: "USD",
		},
		Quality: config.QualityConfig{
			MinRating:       4.7,
			MinFeedbackRate: 0.95,
			MinOrders:       0,
		},
		Momentum: config.MomentumConfig{
			WeakMax:       5,
			StrongMin:     50,
			StrongCeiling: 500,
		},
		Margin: config.MarginConfig{
			MarkupTiers: config.DefaultMarkupTiers(),
			FeePercent:  0.12,
			FeeFixed:    0.30,
			CaptureRate: 0.05,
		},
		Saturation: config.SaturationConfig{
			MediumMin:       1,
			HighMin:         3,
			TitleSimilarity: 0.35,
		},
	}
}

func testSnapshot() *model.ProductSnapshot {
	return &model.ProductSnapshot{
		ProductID:      "P-100",
		Title:          "Ceramic Pour Over Coffee Dripper",
		Categories:     []string{"home-kitchen", "coffee"},
		SourcePrice:    decimal.NewFromFloat(10.00),
		ShippingCost:   decimal.NewFromFloat(2.00),
		Currency:       "USD",
		Rating:         4.9,
		FeedbackRate:   0.97,
		OrderCount:     600,
		StoreAgeMonths: 6,
	}
}
