package cmd

import (
	"fmt"
	"log"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/studio2230704/technical-analysis-dashboard/config"
	"github.com/studio2230704/technical-analysis-dashboard/internal/logger"
)

var (
	cfgFile  string
	logLevel string

	// cfg is loaded once by the root PersistentPreRunE.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tad",
	Short: "Technical analysis dashboard backend",
	Long: `tad computes technical indicators over daily price history and watches a
list of tickers for trading signals.

It provides tools for:
  - Computing SMA, RSI, MACD and Bollinger Bands for a ticker or CSV file
  - Listing recent golden/dead crosses and RSI, MACD and Bollinger signals
  - Hourly alert checks with Telegram and webhook delivery
  - Backtesting the golden-cross strategy across a watchlist
  - Serving the dashboard API and a websocket alert stream`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipsConfig(cmd) {
			return nil
		}
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		lvl, err := logger.ParseLevel(c.Log.Level)
		if err != nil {
			return err
		}
		logger.Init(c.Log.Service, lvl)
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
		slog.Debug("config loaded", "path", cfgFile, "sqlite", c.Storage.SQLitePath, "redis", c.Storage.Redis.Enabled)
		cfg = c
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

// skipsConfig reports whether cmd runs without a loaded config.
func skipsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["config"] == "skip" {
			return true
		}
	}
	return false
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
