package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dropsight/sourcing-cli/internal/model"
	"github.com/dropsight/sourcing-cli/internal/pipeline"
	"github.com/dropsight/sourcing-cli/internal/store"
	"github.com/dropsight/sourcing-cli/pkg/advisor"
	"github.com/dropsight/sourcing-cli/pkg/marketsource"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "dropsight.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// pipelineEnv bundles the wired components a command needs to evaluate
// products.
type pipelineEnv struct {
	store    store.Store
	source   marketsource.Client
	analyzer *pipeline.Analyzer
	advisor  *advisor.Advisor
}

func initEnv(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var sourceOpts []marketsource.ClientOption
	if cfg.Source.BaseURL != "" {
		sourceOpts = append(sourceOpts, marketsource.WithBaseURL(cfg.Source.BaseURL))
	}
	if cfg.Source.RateLimit > 0 {
		sourceOpts = append(sourceOpts, marketsource.WithRateLimit(cfg.Source.RateLimit))
	}
	if cfg.Source.MaxRetries > 0 {
		sourceOpts = append(sourceOpts, marketsource.WithMaxRetries(cfg.Source.MaxRetries))
	}

	env := &pipelineEnv{
		store:    st,
		source:   marketsource.NewClient(cfg.Source.Key, sourceOpts...),
		analyzer: pipeline.New(cfg, nil),
	}

	if cfg.Advisor.Enabled {
		if cfg.Advisor.Key == "" {
			st.Close()
			return nil, eris.New("advisor enabled but no API key set (DROPSIGHT_ADVISOR_KEY)")
		}
		env.advisor = advisor.New(
			advisor.NewClient(cfg.Advisor.Key),
			cfg.Advisor.Model,
			advisor.WithMaxTokens(cfg.Advisor.MaxTokens),
		)
	}

	return env, nil
}

func (e *pipelineEnv) Close() {
	e.store.Close()
}

// analyzeListing runs the full evaluation for one raw listing: normalize,
// run the four stages against the tracked stores, optionally generate an
// advisory, optionally persist.
func (e *pipelineEnv) analyzeListing(ctx context.Context, listing *marketsource.Listing, save bool) (*model.AnalysisRecord, error) {
	snap, err := pipeline.Normalize(listing, cfg.Source)
	if err != nil {
		return nil, eris.Wrapf(err, "normalize listing %s", listing.ProductID)
	}

	stores, err := e.store.ListTrackedStores(ctx)
	if err != nil {
		return nil, err
	}

	result := e.analyzer.Analyze(snap, stores)

	rec := &model.AnalysisRecord{
		ProductID: snap.ProductID,
		Title:     snap.Title,
		Verdict:   result.Verdict,
		Result:    *result,
	}

	if e.advisor != nil {
		text, err := e.advisor.Advise(ctx, summarize(snap, result))
		if err != nil {
			zap.L().Warn("advisory generation failed",
				zap.String("product_id", snap.ProductID),
				zap.Error(err),
			)
		} else {
			rec.Advisory = text
		}
	}

	if save {
		saved, err := e.store.SaveAnalysis(ctx, *rec)
		if err != nil {
			return nil, err
		}
		rec = saved
	}

	return rec, nil
}

func (e *pipelineEnv) fetchAndAnalyze(ctx context.Context, productID string, save bool) (*model.AnalysisRecord, error) {
	listing, err := e.source.FetchListing(ctx, productID)
	if err != nil {
		return nil, err
	}
	return e.analyzeListing(ctx, listing, save)
}

// summarize flattens an analysis result for the advisor prompt.
func summarize(snap *model.ProductSnapshot, result *model.AnalysisResult) advisor.Summary {
	sum := advisor.Summary{
		ProductID:       snap.ProductID,
		Title:           snap.Title,
		Verdict:         string(result.Verdict),
		RejectionStage:  string(result.RejectionStage),
		RejectionReason: result.RejectionReason,
	}
	if m := result.Momentum; m != nil {
		sum.MomentumScore = m.Score
		sum.OrdersPerMonth = m.OrdersPerMonth
		sum.LowConfidence = m.LowConfidence
	}
	if m := result.Margin; m != nil {
		sum.SuggestedPrice = m.SuggestedPrice.StringFixed(2)
		sum.NetMarginPerUnit = m.NetMarginPerUnit.StringFixed(2)
		sum.NetMarginPercent = m.NetMarginPercent
		sum.ProjectedMonthlyProfit = m.ProjectedMonthlyProfit.StringFixed(2)
		sum.Currency = m.Currency
	}
	if s := result.Saturation; s != nil {
		sum.SaturationRisk = string(s.Risk)
		sum.MatchedStoreCount = len(s.MatchedStoreIDs)
	}
	return sum
}
