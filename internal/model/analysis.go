package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stage identifies one of the four analytical stages.
type Stage string

const (
	StageMomentum   Stage = "momentum"
	StageQuality    Stage = "quality_gate"
	StageMargin     Stage = "margin"
	StageSaturation Stage = "saturation"
)

// Verdict is the pipeline's final binary outcome.
type Verdict string

const (
	VerdictAccepted Verdict = "accepted"
	VerdictRejected Verdict = "rejected"
)

// SaturationRisk bands market crowding against the user's tracked stores.
type SaturationRisk string

const (
	SaturationLow    SaturationRisk = "low"
	SaturationMedium SaturationRisk = "medium"
	SaturationHigh   SaturationRisk = "high"
)

// StageResult is the uniform per-stage outcome. Each stage that runs emits
// exactly one. Reason is set only when Passed is false.
type StageResult struct {
	Stage   Stage              `json:"stage"`
	Passed  bool               `json:"passed"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
	Reason  string             `json:"reason,omitempty"`
}

// MomentumReport holds Stage 1 output.
type MomentumReport struct {
	Score          float64 `json:"score"` // 0-100
	OrdersPerMonth float64 `json:"orders_per_month"`
	LowConfidence  bool    `json:"low_confidence,omitempty"` // store age unknown
}

// MarginReport holds Stage 3 output. Monetary fields are in the snapshot's
// currency, rounded to minor units.
type MarginReport struct {
	SuggestedPrice         decimal.Decimal `json:"suggested_price"`
	MarkupMultiplier       decimal.Decimal `json:"markup_multiplier"`
	PlatformFee            decimal.Decimal `json:"platform_fee"`
	NetMarginPerUnit       decimal.Decimal `json:"net_margin_per_unit"`
	NetMarginPercent       float64         `json:"net_margin_percent"` // 0.0-1.0
	EstimatedMonthlyUnits  float64         `json:"estimated_monthly_units"`
	ProjectedMonthlyProfit decimal.Decimal `json:"projected_monthly_profit"`
	Currency               string          `json:"currency"`
}

// SaturationReport holds Stage 4 output.
type SaturationReport struct {
	Risk            SaturationRisk `json:"risk"`
	MatchedStoreIDs []string       `json:"matched_store_ids"`
}

// AnalysisResult is the pipeline's single output. Reports for stages that
// never ran are nil, never zero-filled, so callers can tell "not computed"
// from "computed as zero".
type AnalysisResult struct {
	Verdict         Verdict `json:"verdict"`
	RejectionStage  Stage   `json:"rejection_stage,omitempty"`
	RejectionReason string  `json:"rejection_reason,omitempty"`

	Momentum   *MomentumReport   `json:"momentum,omitempty"`
	Margin     *MarginReport     `json:"margin,omitempty"`
	Saturation *SaturationReport `json:"saturation,omitempty"`

	Stages []StageResult `json:"stages"`
}

// Rejected reports whether the verdict is a rejection.
func (r *AnalysisResult) Rejected() bool {
	return r.Verdict == VerdictRejected
}

// AnalysisRecord is a persisted analysis outcome. The core pipeline never
// writes these; the CLI and serve callers do.
type AnalysisRecord struct {
	ID        string         `json:"id"`
	ProductID string         `json:"product_id"`
	Title     string         `json:"title"`
	Verdict   Verdict        `json:"verdict"`
	Result    AnalysisResult `json:"result"`
	Advisory  string         `json:"advisory,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
