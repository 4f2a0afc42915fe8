package main

import (
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropsight/sourcing-cli/internal/input"
)

var (
	batchSheet    string
	batchSkipRows int
	batchLimit    int
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Evaluate a list of products from a CSV, XLSX, or text file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ids, err := input.ReadProductIDs(args[0], input.Options{
			SheetName: batchSheet,
			SkipRows:  batchSkipRows,
		})
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			zap.L().Info("no product IDs found", zap.String("file", args[0]))
			return nil
		}
		if batchLimit > 0 && len(ids) > batchLimit {
			ids = ids[:batchLimit]
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		zap.L().Info("processing batch",
			zap.Int("products", len(ids)),
			zap.Int("concurrency", cfg.Batch.MaxConcurrent),
		)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Batch.MaxConcurrent)

		var accepted, rejected, failed atomic.Int64

		for _, id := range ids {
			id := id
			g.Go(func() error {
				rec, err := env.fetchAndAnalyze(gctx, id, true)
				if err != nil {
					failed.Add(1)
					zap.L().Error("batch item failed",
						zap.String("product_id", id),
						zap.Error(err),
					)
					return nil // keep going; per-item failures are tallied
				}
				if rec.Result.Rejected() {
					rejected.Add(1)
				} else {
					accepted.Add(1)
				}
				zap.L().Info("batch item complete",
					zap.String("product_id", id),
					zap.String("verdict", string(rec.Verdict)),
				)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "batch run")
		}

		zap.L().Info("batch complete",
			zap.Int64("accepted", accepted.Load()),
			zap.Int64("rejected", rejected.Load()),
			zap.Int64("failed", failed.Load()),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchSheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	batchCmd.Flags().IntVar(&batchSkipRows, "skip-rows", 1, "header rows to skip")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max products to process (0 = all)")
	rootCmd.AddCommand(batchCmd)
}
