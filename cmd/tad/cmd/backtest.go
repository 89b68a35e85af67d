package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/studio2230704/technical-analysis-dashboard/internal/backtest"
	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

var (
	btFast      int
	btSlow      int
	btPeriod    string
	btRSIFilter bool
	btLimit     int
	btCSV       string
	btJSON      bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [TICKER...]",
	Short: "Backtest the golden-cross strategy",
	Long: `Buy on a golden cross, sell on the next dead cross, and close any open
position at the last bar. With no tickers the whole watchlist is tested
and aggregated.

Examples:
  tad backtest 7203.T --period 5y
  tad backtest --fast 5 --slow 25
  tad backtest --csv prices.csv`,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.Flags().IntVar(&btFast, "fast", 0, "fast SMA window (default from config)")
	backtestCmd.Flags().IntVar(&btSlow, "slow", 0, "slow SMA window (default from config)")
	backtestCmd.Flags().StringVarP(&btPeriod, "period", "p", "5y", "history period")
	backtestCmd.Flags().BoolVar(&btRSIFilter, "rsi-filter", false, "skip entries while RSI is overbought")
	backtestCmd.Flags().IntVar(&btLimit, "limit", 0, "max tickers in a portfolio run (0 = all)")
	backtestCmd.Flags().StringVar(&btCSV, "csv", "", "backtest bars from a CSV file")
	backtestCmd.Flags().BoolVar(&btJSON, "json", false, "print JSON")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	bc := cfg.Backtest
	if btFast > 0 {
		bc.Pair.Fast = btFast
	}
	if btSlow > 0 {
		bc.Pair.Slow = btSlow
	}
	bc.RSIFilter = bc.RSIFilter || btRSIFilter

	if btCSV != "" {
		series, err := readCSVFile(btCSV, tickerArg(args, btCSV))
		if err != nil {
			return err
		}
		return backtestOne(cmd, series, bc)
	}

	ctx := cmd.Context()
	rng, err := periodRange(btPeriod)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		series, err := a.fetcher.Fetch(ctx, args[0], rng)
		if err != nil {
			return err
		}
		return backtestOne(cmd, series, bc)
	}

	tickers := args
	if len(tickers) == 0 {
		tickers = a.watchlist.Tickers()
	}
	if len(tickers) == 0 {
		return fmt.Errorf("watchlist is empty; add tickers or pass them as arguments")
	}
	res, err := backtest.RunPortfolio(ctx, a.fetcher, tickers, rng, btLimit, bc)
	if err != nil {
		return err
	}
	if btJSON {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	printPortfolio(cmd.OutOrStdout(), res)
	return nil
}

func backtestOne(cmd *cobra.Command, series model.PriceSeries, bc backtest.Config) error {
	res, err := backtest.Run(series, bc)
	if err != nil {
		return err
	}
	if btJSON {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s %s over %d bars\n", res.Ticker, res.Strategy, res.Bars)
	fmt.Fprintf(w, "  trades %d (won %d, lost %d), win rate %.1f%%\n", res.TotalTrades, res.WinningTrades, res.LosingTrades, res.WinRate)
	fmt.Fprintf(w, "  avg return %.2f%%, total return %.2f%%, max drawdown %.2f%%\n\n", res.AvgReturn, res.TotalReturn, res.MaxDrawdown)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTRY\tPRICE\tEXIT\tPRICE\tRETURN")
	for _, t := range res.Trades {
		exit := t.ExitDate.Format("2006-01-02")
		if t.ClosedAtEnd {
			exit += "*"
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%s\t%.2f\t%+.2f%%\n", t.EntryDate.Format("2006-01-02"), t.EntryPrice, exit, t.ExitPrice, t.ReturnPct)
	}
	return tw.Flush()
}

func printPortfolio(w io.Writer, res *backtest.PortfolioResult) {
	s := res.Summary
	fmt.Fprintf(w, "analysed %d tickers (%d skipped)\n", s.StocksAnalyzed, s.StocksWithErrors)
	fmt.Fprintf(w, "  trades %d (won %d, lost %d), overall win rate %.1f%%\n", s.TotalTrades, s.WinningTrades, s.LosingTrades, s.OverallWinRate)
	fmt.Fprintf(w, "  avg return/trade %.2f%%, median %.2f%%, std %.2f, avg max drawdown %.2f%%\n",
		s.AvgReturnPerTrade, s.MedianReturn, s.StdReturn, s.AvgMaxDrawdown)

	table := func(title string, rows []backtest.Performer) {
		fmt.Fprintf(w, "\n%s\n", title)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, p := range rows {
			fmt.Fprintf(tw, "  %s\t%+.2f%%\t%.0f%%\t%d trades\n", p.Ticker, p.TotalReturn, p.WinRate, p.Trades)
		}
		tw.Flush()
	}
	table("best", res.Best)
	table("worst", res.Worst)
	for t, e := range res.Errors {
		fmt.Fprintf(w, "  skipped %s: %s\n", t, e)
	}
}
