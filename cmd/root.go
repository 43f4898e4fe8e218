// Package cmd implements the command-line interface for the auction
// monitor service.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sss97133/nuke-sub008/cmd/extract"
	"github.com/sss97133/nuke-sub008/cmd/listings"
	cmdscheduler "github.com/sss97133/nuke-sub008/cmd/scheduler"
	"github.com/sss97133/nuke-sub008/cmd/serve"
)

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "auctionwatch",
		Short: "Collector-car auction listing extraction and live monitoring",
		Long: `auctionwatch extracts structured vehicle and auction data from
listing pages and keeps tracked auctions synchronized until they conclude.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml or ./config/config.yaml)",
	)

	rootCmd.AddCommand(serve.Command(&cfgFile))
	rootCmd.AddCommand(cmdscheduler.Command(&cfgFile))
	rootCmd.AddCommand(extract.Command(&cfgFile))
	rootCmd.AddCommand(listings.Command(&cfgFile))
}
