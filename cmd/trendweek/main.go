package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "trendweek",
	Short: "trendweek - weekly regime-aware backtester",
	Long: `trendweek simulates a long-only weekly strategy on one instrument against
daily price history: risk metrics gate entries, a cascaded weighted moving
average picks the Bull or Bear exit thresholds.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
