package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dropsight/sourcing-cli/pkg/marketsource"
)

var (
	analyzeInput string
	analyzeSave  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [product-id]",
	Short: "Evaluate a single product listing",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var listing *marketsource.Listing
		switch {
		case analyzeInput != "":
			listing, err = readListingFile(analyzeInput)
			if err != nil {
				return err
			}
		case len(args) == 1:
			listing, err = env.source.FetchListing(ctx, args[0])
			if err != nil {
				return eris.Wrapf(err, "fetch listing %s", args[0])
			}
		default:
			return eris.New("either a product ID argument or --input is required")
		}

		rec, err := env.analyzeListing(ctx, listing, analyzeSave)
		if err != nil {
			return err
		}

		zap.L().Info("analysis complete",
			zap.String("product_id", rec.ProductID),
			zap.String("verdict", string(rec.Verdict)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func readListingFile(path string) (*marketsource.Listing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read listing file %s", path)
	}
	var listing marketsource.Listing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, eris.Wrapf(err, "parse listing file %s", path)
	}
	return &listing, nil
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeInput, "input", "", "path to a JSON listing file (skips the fetch)")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "persist the analysis record")
	rootCmd.AddCommand(analyzeCmd)
}
