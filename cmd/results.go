package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/dropsight/sourcing-cli/internal/model"
	"github.com/dropsight/sourcing-cli/internal/store"
)

var (
	resultsVerdict string
	resultsProduct string
	resultsLimit   int
	resultsOffset  int
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Browse saved analyses",
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved analyses, newest first",
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

		records, err := st.ListAnalyses(ctx, store.AnalysisFilter{
			Verdict:   model.Verdict(resultsVerdict),
			ProductID: resultsProduct,
			Limit:     resultsLimit,
			Offset:    resultsOffset,
		})
		if err != nil {
			return err
		}
		return printJSON(records)
	},
}

var resultsGetCmd = &cobra.Command{
	Use:   "get <analysis-id>",
	Short: "Show one saved analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rec, err := st.GetAnalysis(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(rec)
	},
}

func init() {
	resultsListCmd.Flags().StringVar(&resultsVerdict, "verdict", "", "filter by verdict (accepted|rejected)")
	resultsListCmd.Flags().StringVar(&resultsProduct, "product", "", "filter by product ID")
	resultsListCmd.Flags().IntVar(&resultsLimit, "limit", 50, "max records")
	resultsListCmd.Flags().IntVar(&resultsOffset, "offset", 0, "records to skip")
	resultsCmd.AddCommand(resultsListCmd, resultsGetCmd)
	rootCmd.AddCommand(resultsCmd)
}
