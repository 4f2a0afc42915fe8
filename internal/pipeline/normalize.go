// Package pipeline implements the product evaluation pipeline: a normalizer
// that turns raw marketplace listings into canonical snapshots, four
// analytical stages (momentum, quality gate, margin, saturation), and the
// orchestrator that sequences them into a single verdict.
package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/dropsight/sourcing-cli/internal/config"
	"github.com/dropsight/sourcing-cli/internal/model"
	"github.com/dropsight/sourcing-cli/pkg/marketsource"
)

// NormalizationError reports a listing that cannot be analyzed because a
// mandatory field is structurally absent. Distinct from a business
// rejection: analysis was never attempted.
type NormalizationError struct {
	Field string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("listing is missing mandatory field %q", e.Field)
}

// storeDateLayouts are the formats seen in marketplace exports for the
// store-established date.
var storeDateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01",
	"Jan 2, 2006",
	"January 2, 2006",
}

// Normalize converts a raw listing into a canonical ProductSnapshot. Price
// and rating are mandatory; everything else degrades gracefully. Pure, no
// side effects.
func Normalize(l *marketsource.Listing, cfg config.SourceConfig) (*model.ProductSnapshot, error) {
	return NormalizeAt(l, cfg, time.Now().UTC())
}

// NormalizeAt is Normalize with an injectable clock for store-age
// derivation.
func NormalizeAt(l *marketsource.Listing, cfg config.SourceConfig, now time.Time) (*model.ProductSnapshot, error) {
	if l == nil {
		return nil, eris.New("normalize: nil listing")
	}

	price, ok := coerceDecimal(l.Price)
	if !ok {
		return nil, &NormalizationError{Field: "price"}
	}
	rating, ok := coerceFloat(l.Rating)
	if !ok {
		return nil, &NormalizationError{Field: "rating"}
	}

	shipping, ok := coerceDecimal(l.ShippingCost)
	if !ok {
		shipping = decimal.Zero
	}

	// Feedback may arrive as a fraction (0.97), a percentage (97), or a
	// string with a percent sign. Absent feedback stays 0.0, which the
	// quality gate treats as unknown-and-unsafe.
	feedback, _ := coerceFloat(l.PositiveFeedback)
	if feedback > 1 {
		feedback /= 100
	}

	orders, _ := coerceInt(l.OrderCount)

	ageMonths, ageUnknown := storeAgeMonths(l.StoreOpenedAt, now)

	cur, err := canonicalCurrency(l.Currency, cfg.DefaultCurrency)
	if err != nil {
		return nil, err
	}

	return &model.ProductSnapshot{
		ProductID:      l.ProductID,
		Title:          strings.TrimSpace(l.Title),
		URL:            l.URL,
		Categories:     l.Categories,
		ImageURL:       l.ImageURL,
		SourcePrice:    price,
		ShippingCost:   shipping,
		Currency:       cur,
		Rating:         rating,
		FeedbackRate:   feedback,
		OrderCount:     orders,
		StoreAgeMonths: ageMonths,
		AgeUnknown:     ageUnknown,
	}, nil
}

// canonicalCurrency validates the listing's currency code against ISO 4217,
// falling back to the platform's reference currency.
func canonicalCurrency(code, fallback string) (string, error) {
	if code == "" {
		code = fallback
	}
	if code == "" {
		code = "USD"
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", eris.Wrapf(err, "normalize: invalid currency %q", code)
	}
	return unit.String(), nil
}

// storeAgeMonths derives whole months since the store-established date.
// Unparseable or absent dates yield (0, true): age unknown, propagated to
// the momentum stage as a low-confidence flag.
func storeAgeMonths(raw any, now time.Time) (int, bool) {
	s, ok := coerceString(raw)
	if !ok || s == "" {
		return 0, true
	}
	var opened time.Time
	var err error
	for _, layout := range storeDateLayouts {
		opened, err = time.Parse(layout, s)
		if err == nil {
			break
		}
	}
	if err != nil {
		return 0, true
	}

	months := (now.Year()-opened.Year())*12 + int(now.Month()) - int(opened.Month())
	if now.Day() < opened.Day() {
		months--
	}
	if months < 0 {
		months = 0
	}
	return months, false
}

// coerceDecimal accepts the numeric shapes marketplace payloads use for
// money: numbers, numeric strings, and strings with currency prefixes
// stripped upstream.
func coerceDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	case decimal.Decimal:
		return t, true
	default:
		return decimal.Zero, false
	}
}

func coerceFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(t), "%")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceInt(v any) (int, bool) {
	f, ok := coerceFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func coerceString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
