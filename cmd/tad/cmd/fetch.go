package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/studio2230704/technical-analysis-dashboard/internal/marketdata"
)

var (
	fetchPeriod string
	fetchOutput string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch TICKER",
	Short: "Download daily bars and write them as CSV",
	Long: `Fetch daily bars through the bar cache and write them in the CSV format
read by --csv on compute, signals and backtest.

Examples:
  tad fetch 7203.T --period 2y -o toyota.csv
  tad fetch AAPL > aapl.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVarP(&fetchPeriod, "period", "p", "", "history period (1mo, 3mo, 6mo, 1y, 2y, 5y)")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "output file (default stdout)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	series, err := fetchSeries(cmd.Context(), args[0], fetchPeriod)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if fetchOutput != "" {
		f, err := os.Create(fetchOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := marketdata.WriteCSV(w, series); err != nil {
		return err
	}
	if fetchOutput != "" {
		printf(cmd, "wrote %d bars for %s to %s\n", series.Len(), series.Ticker, fetchOutput)
	}
	return nil
}
