package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropsight/sourcing-cli/internal/model"
	"github.com/dropsight/sourcing-cli/internal/pipeline"
	"github.com/dropsight/sourcing-cli/internal/store"
)

func TestSummarize_Accepted(t *testing.T) {
	snap := &model.ProductSnapshot{ProductID: "P-100", Title: "Dripper"}
	result := &model.AnalysisResult{
		Verdict:  model.VerdictAccepted,
		Momentum: &model.MomentumReport{Score: 73.3, OrdersPerMonth: 100},
		Margin: &model.MarginReport{
			SuggestedPrice:         decimal.RequireFromString("30.00"),
			NetMarginPerUnit:       decimal.RequireFromString("14.10"),
			NetMarginPercent:       0.47,
			ProjectedMonthlyProfit: decimal.RequireFromString("70.50"),
			Currency:               "USD",
		},
		Saturation: &model.SaturationReport{
			Risk:            model.SaturationMedium,
			MatchedStoreIDs: []string{"s1", "s2"},
		},
	}

	sum := summarize(snap, result)
	assert.Equal(t, "accepted", sum.Verdict)
	assert.Equal(t, "30.00", sum.SuggestedPrice)
	assert.Equal(t, "medium", sum.SaturationRisk)
	assert.Equal(t, 2, sum.MatchedStoreCount)
}

func TestSummarize_RejectedEarly(t *testing.T) {
	snap := &model.ProductSnapshot{ProductID: "P-300", Title: "Case"}
	result := &model.AnalysisResult{
		Verdict:         model.VerdictRejected,
		RejectionStage:  model.StageQuality,
		RejectionReason: "rating_below_threshold",
		Momentum:        &model.MomentumReport{Score: 40, OrdersPerMonth: 12},
	}

	sum := summarize(snap, result)
	assert.Equal(t, "quality_gate", sum.RejectionStage)
	assert.Empty(t, sum.SuggestedPrice)
	assert.Empty(t, sum.SaturationRisk)
}

func TestAnalyzeListing_SaturationAgainstTrackedStores(t *testing.T) {
	cfg = testConfig()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	defer st.Close()

	_, err = st.TrackStore(context.Background(), model.TrackedStore{
		Domain:             "rival.example.com",
		LastSeenProductIDs: []string{"P-100"},
	})
	require.NoError(t, err)

	env := &pipelineEnv{store: st, analyzer: pipeline.New(cfg, nil)}

	rec, err := env.analyzeListing(context.Background(), goodListing(), false)
	require.NoError(t, err)
	require.NotNil(t, rec.Result.Saturation)
	assert.Equal(t, model.SaturationMedium, rec.Result.Saturation.Risk)
	assert.Len(t, rec.Result.Saturation.MatchedStoreIDs, 1)
}

func TestReadListingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listing.json")
	content := `{"product_id": "P-9", "title": "Grinder", "price": "24.50", "rating": 4.8}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	listing, err := readListingFile(path)
	require.NoError(t, err)
	assert.Equal(t, "P-9", listing.ProductID)
	assert.Equal(t, "24.50", listing.Price)

	_, err = readListingFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
