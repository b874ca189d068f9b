package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rickgao/ohlcv-gatherer/internal/ensemble"
	"github.com/rickgao/ohlcv-gatherer/internal/store"
)

func newOnceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single pass over every instrument and exit",
		Long: "Runs one fetch cycle per instrument and exits. The exit status is " +
			"non-zero when any instrument failed or was abandoned.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st, err := store.NewFileStore(cfg.Ingest.TimeseriesDir, logger)
			if err != nil {
				return err
			}
			client, err := newAPIClient(cfg, logger)
			if err != nil {
				return err
			}
			ens, err := buildEnsemble(ctx, cfg, client, st, nil, nil, logger)
			if err != nil {
				return err
			}

			report := ens.RunPass(ctx)
			for _, o := range report.Outcomes {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-9s rows=%d sentinels=%d caught_up=%t\n",
					o.Instrument, o.Status, o.Result.Appended, o.Result.Sentinels, o.Result.CaughtUp)
			}

			if n := report.Count(ensemble.StatusFailed) + report.Count(ensemble.StatusAbandoned); n > 0 {
				return fmt.Errorf("%d of %d instruments did not complete", n, len(report.Outcomes))
			}
			return nil
		},
	}
}
