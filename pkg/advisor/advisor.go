// Package advisor turns a finished analysis into a short sourcing
// recommendation using an LLM. It is strictly decorative: it runs after the
// verdict is decided and never changes it.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

const systemPrompt = `You are a product sourcing analyst for a resale business.
Given the metrics of an evaluated marketplace listing, write a short advisory
(3-5 sentences) for the buyer: what the numbers say, the main risk, and a
concrete next step. Plain prose, no headings, no bullet points.`

const defaultMaxTokens = 512

// Summary is the flattened analysis outcome handed to the advisor. Keeping it
// flat avoids coupling the package to the pipeline's result types.
type Summary struct {
	ProductID string
	Title     string
	Verdict   string

	RejectionStage  string
	RejectionReason string

	MomentumScore  float64
	OrdersPerMonth float64
	LowConfidence  bool

	SuggestedPrice         string
	NetMarginPerUnit       string
	NetMarginPercent       float64
	ProjectedMonthlyProfit string
	Currency               string

	SaturationRisk    string
	MatchedStoreCount int
}

// Advisor generates advisory text for analysis outcomes.
type Advisor struct {
	client    Client
	model     string
	maxTokens int64
}

// Option configures the Advisor.
type Option func(*Advisor)

// WithMaxTokens overrides the response token budget.
func WithMaxTokens(n int64) Option {
	return func(a *Advisor) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// New creates an Advisor using the given client and model ID.
func New(client Client, model string, opts ...Option) *Advisor {
	a := &Advisor{
		client:    client,
		model:     model,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Advise produces a short recommendation for the given analysis summary.
func (a *Advisor) Advise(ctx context.Context, sum Summary) (string, error) {
	resp, err := a.client.CreateMessage(ctx, MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    systemPrompt,
		Messages: []Message{
			{Role: "user", Content: buildPrompt(sum)},
		},
	})
	if err != nil {
		return "", eris.Wrapf(err, "advisor: advise on %s", sum.ProductID)
	}
	resp.Usage.LogUsage(a.model)

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", eris.Errorf("advisor: empty response for %s", sum.ProductID)
	}
	return text, nil
}

func buildPrompt(sum Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Product: %s (%s)\n", sum.Title, sum.ProductID)
	fmt.Fprintf(&sb, "Verdict: %s\n", sum.Verdict)
	if sum.RejectionStage != "" {
		fmt.Fprintf(&sb, "Rejected at: %s (%s)\n", sum.RejectionStage, sum.RejectionReason)
	}
	fmt.Fprintf(&sb, "Momentum score: %.1f/100 (%.1f orders/month)\n", sum.MomentumScore, sum.OrdersPerMonth)
	if sum.LowConfidence {
		sb.WriteString("Momentum confidence: low, store age unknown\n")
	}
	if sum.SuggestedPrice != "" {
		fmt.Fprintf(&sb, "Suggested price: %s %s\n", sum.SuggestedPrice, sum.Currency)
		fmt.Fprintf(&sb, "Net margin per unit: %s %s (%.0f%%)\n", sum.NetMarginPerUnit, sum.Currency, sum.NetMarginPercent*100)
		fmt.Fprintf(&sb, "Projected monthly profit: %s %s\n", sum.ProjectedMonthlyProfit, sum.Currency)
	}
	if sum.SaturationRisk != "" {
		fmt.Fprintf(&sb, "Saturation risk: %s (%d tracked stores already sell this)\n", sum.SaturationRisk, sum.MatchedStoreCount)
	}
	return sb.String()
}
