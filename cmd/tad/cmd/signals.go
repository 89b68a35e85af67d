package cmd

import (
	"github.com/spf13/cobra"

	"github.com/studio2230704/technical-analysis-dashboard/internal/signal"
	"github.com/studio2230704/technical-analysis-dashboard/internal/watchlist"
)

var (
	signalsPeriod   string
	signalsLookback int
	signalsCSV      string
	signalsJSON     bool
)

var signalsCmd = &cobra.Command{
	Use:   "signals [TICKER]",
	Short: "List recent trading signals for a ticker",
	Long: `Scan the last --lookback bars for golden/dead crosses, RSI recoveries,
MACD crosses and Bollinger band touches. Newest first.

Watchlist RSI thresholds apply when the ticker is listed.

Examples:
  tad signals 7203.T
  tad signals AAPL --lookback 60 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSignals,
}

func init() {
	rootCmd.AddCommand(signalsCmd)
	signalsCmd.Flags().StringVarP(&signalsPeriod, "period", "p", "", "history period")
	signalsCmd.Flags().IntVarP(&signalsLookback, "lookback", "l", signal.DefaultLookback, "bars scanned from the end")
	signalsCmd.Flags().StringVar(&signalsCSV, "csv", "", "read bars from a CSV file instead of fetching")
	signalsCmd.Flags().BoolVar(&signalsJSON, "json", false, "print JSON")
}

func runSignals(cmd *cobra.Command, args []string) error {
	ticker := tickerArg(args, signalsCSV)

	opts := signal.Options{Lookback: signalsLookback}
	if wl, err := watchlist.Open(cfg.Data.Watchlist); err == nil {
		if e, ok := wl.Get(ticker); ok {
			opts.RSIOversold = e.RSIOversold
			opts.RSIOverbought = e.RSIOverbought
		}
	}

	series, bundle, err := loadBundle(cmd.Context(), signalsCSV, args, signalsPeriod, cfg.Engine)
	if err != nil {
		return err
	}
	sigs := signal.Detect(bundle, series, opts)

	if signalsJSON {
		if sigs == nil {
			sigs = []signal.Signal{}
		}
		return writeJSON(cmd.OutOrStdout(), sigs)
	}
	if len(sigs) == 0 {
		printf(cmd, "no signals in the last %d bars\n", opts.Lookback)
		return nil
	}
	for _, s := range sigs {
		dir := "-"
		if s.Bullish {
			dir = "+"
		}
		printf(cmd, "%s %s %-15s %10.2f  %s\n", s.Date.Format("2006-01-02"), dir, s.Type, s.Price, s.Description)
	}
	return nil
}
