package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgao/ohlcv-gatherer/internal/catalog"
)

func newProductsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List the instruments discovery would track",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			client, err := newAPIClient(cfg, logger)
			if err != nil {
				return err
			}
			insts, err := catalog.Discover(cmd.Context(), client, cfg.Ingest.ExcludeQuotes)
			if err != nil {
				return err
			}
			for _, inst := range insts {
				fmt.Fprintln(cmd.OutOrStdout(), inst)
			}
			return nil
		},
	}
}
