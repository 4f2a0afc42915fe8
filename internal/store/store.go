// Package store persists the caller-side state around the analysis pipeline:
// the user's tracked competitor stores and saved analysis records. The
// pipeline itself never touches persistence.
package store

import (
	"context"

	"github.com/dropsight/sourcing-cli/internal/model"
)

// AnalysisFilter specifies criteria for listing saved analyses.
type AnalysisFilter struct {
	Verdict   model.Verdict `json:"verdict,omitempty"`
	ProductID string        `json:"product_id,omitempty"`
	Limit     int           `json:"limit,omitempty"`
	Offset    int           `json:"offset,omitempty"`
}

// Store defines the persistence interface for tracked stores and analyses.
type Store interface {
	// Tracked stores
	TrackStore(ctx context.Context, ts model.TrackedStore) (*model.TrackedStore, error)
	ListTrackedStores(ctx context.Context) ([]model.TrackedStore, error)
	UntrackStore(ctx context.Context, storeID string) error

	// Analyses
	SaveAnalysis(ctx context.Context, rec model.AnalysisRecord) (*model.AnalysisRecord, error)
	GetAnalysis(ctx context.Context, id string) (*model.AnalysisRecord, error)
	ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.AnalysisRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
