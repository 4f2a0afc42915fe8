package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dropsight/sourcing-cli/internal/model"
)

var (
	trackDomain     string
	trackCategories []string
	trackProductIDs []string
)

var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "Manage tracked competitor stores",
}

var storesTrackCmd = &cobra.Command{
	Use:   "track",
	Short: "Track a competitor store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if trackDomain == "" {
			return eris.New("--domain is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		saved, err := st.TrackStore(ctx, model.TrackedStore{
			Domain:             trackDomain,
			ProductCategories:  trackCategories,
			LastSeenProductIDs: trackProductIDs,
		})
		if err != nil {
			return err
		}

		zap.L().Info("store tracked",
			zap.String("store_id", saved.StoreID),
			zap.String("domain", saved.Domain),
		)
		return printJSON(saved)
	},
}

var storesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked stores",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		stores, err := st.ListTrackedStores(ctx)
		if err != nil {
			return err
		}
		return printJSON(stores)
	},
}

var storesUntrackCmd = &cobra.Command{
	Use:   "untrack <store-id>",
	Short: "Stop tracking a store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.UntrackStore(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("store untracked", zap.String("store_id", args[0]))
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	storesTrackCmd.Flags().StringVar(&trackDomain, "domain", "", "store domain (required)")
	storesTrackCmd.Flags().StringSliceVar(&trackCategories, "categories", nil, "product categories the store sells")
	storesTrackCmd.Flags().StringSliceVar(&trackProductIDs, "product-ids", nil, "product IDs seen in the store")
	storesCmd.AddCommand(storesTrackCmd, storesListCmd, storesUntrackCmd)
	rootCmd.AddCommand(storesCmd)
}
