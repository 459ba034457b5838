package main

import (
	"context"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gitrdm/ddbound/internal/parallel"
)

func newBatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <instance.yaml>...",
		Short: "Compute dual bounds for many instances concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := a.batch(cmd.Context(), args)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), reports)
		},
	}
}

// batch solves every instance on its own goroutine. Instance errors are
// reported per instance; only cancellation stops the batch.
func (a *app) batch(ctx context.Context, paths []string) ([]report, error) {
	log := ctxzap.Extract(ctx).With(zap.String("batch_id", ksuid.New().String()))
	ctx = ctxzap.ToContext(ctx, log)
	log.Info("batch started", zap.Int("instances", len(paths)), zap.Int("workers", a.settings.Workers))

	reports, err := parallel.Map(ctx, a.settings.Workers, paths, func(ctx context.Context, _ int, path string) (report, error) {
		r, err := a.solve(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return r, ctx.Err()
			}
			log.Warn("instance failed", zap.String("instance", path), zap.Error(err))
			r.Error = err.Error()
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	log.Info("batch finished")
	return reports, nil
}
