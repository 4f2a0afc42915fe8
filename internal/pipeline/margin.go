package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/dropsight/sourcing-cli/internal/config"
	"github.com/dropsight/sourcing-cli/internal/model"
)

// ReasonNegativeMargin rejects products whose resale economics do not work.
const ReasonNegativeMargin = "negative_margin"

// CalculateMargin implements Stage 3: suggested resale price, per-unit net
// margin, and projected monthly profit. ordersPerMonth comes from Stage 1's
// metrics, not its pass/fail state. All money arithmetic is fixed-point.
func CalculateMargin(snap *model.ProductSnapshot, ordersPerMonth float64, cfg config.MarginConfig) (model.StageResult, *model.MarginReport) {
	multiplier := markupFor(snap.SourcePrice, cfg.MarkupTiers)

	suggested := snap.LandedCost().Mul(multiplier).RoundBank(2)
	fee := platformFee(suggested, cfg)
	net := suggested.Sub(snap.SourcePrice).Sub(snap.ShippingCost).Sub(fee)

	var netPct float64
	if suggested.IsPositive() {
		netPct = net.Div(suggested).InexactFloat64()
	}

	units := ordersPerMonth * cfg.CaptureRate
	profit := net.Mul(decimal.NewFromFloat(units)).RoundBank(2)

	report := &model.MarginReport{
		SuggestedPrice:         suggested,
		MarkupMultiplier:       multiplier,
		PlatformFee:            fee,
		NetMarginPerUnit:       net,
		NetMarginPercent:       netPct,
		EstimatedMonthlyUnits:  units,
		ProjectedMonthlyProfit: profit,
		Currency:               snap.Currency,
	}

	result := model.StageResult{
		Stage:  model.StageMargin,
		Passed: net.IsPositive(),
		Metrics: map[string]float64{
			"suggested_price":          suggested.InexactFloat64(),
			"platform_fee":             fee.InexactFloat64(),
			"net_margin_per_unit":      net.InexactFloat64(),
			"net_margin_percent":       netPct,
			"estimated_monthly_units":  units,
			"projected_monthly_profit": profit.InexactFloat64(),
		},
	}
	if !result.Passed {
		result.Reason = ReasonNegativeMargin
	}

	return result, report
}

// markupFor picks the multiplier for the first tier whose ceiling covers the
// source price. A tier with MaxPrice <= 0 is the open-ended final tier.
func markupFor(sourcePrice decimal.Decimal, tiers []config.MarkupTier) decimal.Decimal {
	for _, tier := range tiers {
		if tier.MaxPrice <= 0 {
			return decimal.NewFromFloat(tier.Multiplier)
		}
		if sourcePrice.LessThan(decimal.NewFromFloat(tier.MaxPrice)) {
			return decimal.NewFromFloat(tier.Multiplier)
		}
	}
	// No tier covered the price; fall back to the default table's last tier.
	fallback := config.DefaultMarkupTiers()
	return decimal.NewFromFloat(fallback[len(fallback)-1].Multiplier)
}

// platformFee models payment processing plus marketplace commission as a
// percentage of the sale price plus a fixed fee, rounded to minor units.
func platformFee(suggestedPrice decimal.Decimal, cfg config.MarginConfig) decimal.Decimal {
	pct := suggestedPrice.Mul(decimal.NewFromFloat(cfg.FeePercent))
	return pct.Add(decimal.NewFromFloat(cfg.FeeFixed)).RoundBank(2)
}
