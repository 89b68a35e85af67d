package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/studio2230704/technical-analysis-dashboard/internal/watchlist"
)

var (
	wlName       string
	wlOversold   float64
	wlOverbought float64
	wlNoCross    bool
)

var watchlistCmd = &cobra.Command{
	Use:     "watchlist",
	Aliases: []string{"wl"},
	Short:   "Manage the watched tickers",
}

var watchlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched tickers",
	RunE: func(cmd *cobra.Command, args []string) error {
		wl, err := watchlist.Open(cfg.Data.Watchlist)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TICKER\tNAME\tOVERSOLD\tOVERBOUGHT\tCROSS")
		for _, e := range wl.List() {
			fmt.Fprintf(tw, "%s\t%s\t%.0f\t%.0f\t%t\n", e.Ticker, e.Name, e.RSIOversold, e.RSIOverbought, e.CrossEnabled)
		}
		return tw.Flush()
	},
}

var watchlistAddCmd = &cobra.Command{
	Use:   "add TICKER",
	Short: "Add or update a ticker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wl, err := watchlist.Open(cfg.Data.Watchlist)
		if err != nil {
			return err
		}
		e := watchlist.NewEntry(args[0])
		if prev, ok := wl.Get(args[0]); ok {
			e = prev
		}
		if cmd.Flags().Changed("name") {
			e.Name = wlName
		}
		if cmd.Flags().Changed("oversold") {
			e.RSIOversold = wlOversold
		}
		if cmd.Flags().Changed("overbought") {
			e.RSIOverbought = wlOverbought
		}
		if cmd.Flags().Changed("no-cross") {
			e.CrossEnabled = !wlNoCross
		}
		if err := wl.Add(e); err != nil {
			return err
		}
		printf(cmd, "✓ %s saved (%d tickers)\n", e.Ticker, wl.Len())
		return nil
	},
}

var watchlistRemoveCmd = &cobra.Command{
	Use:     "remove TICKER",
	Aliases: []string{"rm"},
	Short:   "Remove a ticker",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wl, err := watchlist.Open(cfg.Data.Watchlist)
		if err != nil {
			return err
		}
		removed, err := wl.Remove(args[0])
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("%w: %s", watchlist.ErrNotFound, args[0])
		}
		printf(cmd, "✓ %s removed (%d tickers)\n", args[0], wl.Len())
		return nil
	},
}

var watchlistImportCmd = &cobra.Command{
	Use:   "import FILE.csv",
	Short: "Import tickers from a CSV file with a ticker column",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wl, err := watchlist.Open(cfg.Data.Watchlist)
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		n, err := wl.LoadCSV(f)
		if err != nil {
			return err
		}
		printf(cmd, "✓ imported %d tickers (%d total)\n", n, wl.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchlistCmd)
	watchlistCmd.AddCommand(watchlistListCmd, watchlistAddCmd, watchlistRemoveCmd, watchlistImportCmd)

	watchlistAddCmd.Flags().StringVar(&wlName, "name", "", "display name")
	watchlistAddCmd.Flags().Float64Var(&wlOversold, "oversold", 30, "RSI oversold threshold")
	watchlistAddCmd.Flags().Float64Var(&wlOverbought, "overbought", 70, "RSI overbought threshold")
	watchlistAddCmd.Flags().BoolVar(&wlNoCross, "no-cross", false, "disable crossover alerts")
}
