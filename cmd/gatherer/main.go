// Command gatherer keeps a local store of fixed-granularity OHLCV candles
// up to date for a set of instruments.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	envFiles   []string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "gatherer",
		Short:         "Incremental OHLCV candle ingestion",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "configs/gatherer.yaml", "path to config file")
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files loaded before the config")

	root.AddCommand(
		newRunCmd(opts),
		newOnceCmd(opts),
		newStatusCmd(opts),
		newProductsCmd(opts),
		newVersionCmd(),
	)
	return root
}
