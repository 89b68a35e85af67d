package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/studio2230704/technical-analysis-dashboard/internal/indicator"
	"github.com/studio2230704/technical-analysis-dashboard/internal/marketdata"
	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

var (
	computeCSV     string
	computePeriod  string
	computeLast    int
	computeJSON    bool
	computeWindows string
	computePairs   string
)

var computeCmd = &cobra.Command{
	Use:   "compute [TICKER]",
	Short: "Compute indicators for a ticker or a CSV file",
	Long: `Compute SMA, RSI, MACD, Bollinger Bands and crossovers over daily closes.

Examples:
  tad compute 7203.T --period 6mo
  tad compute 7203.T --windows 5,20,60 --pairs 5/20,20/60
  tad compute --csv prices.csv --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCompute,
}

func init() {
	rootCmd.AddCommand(computeCmd)
	computeCmd.Flags().StringVar(&computeCSV, "csv", "", "read bars from a CSV file instead of fetching")
	computeCmd.Flags().StringVarP(&computePeriod, "period", "p", "", "history period (1mo, 3mo, 6mo, 1y, 2y, 5y)")
	computeCmd.Flags().IntVarP(&computeLast, "last", "n", 10, "rows shown in the table")
	computeCmd.Flags().BoolVar(&computeJSON, "json", false, "print the full bundle as JSON")
	computeCmd.Flags().StringVar(&computeWindows, "windows", "", "SMA windows, e.g. 5,25,75 (default from config)")
	computeCmd.Flags().StringVar(&computePairs, "pairs", "", "cross pairs FAST/SLOW, e.g. 5/25,25/75 (default from config)")
}

func runCompute(cmd *cobra.Command, args []string) error {
	eng, err := engineOverrides(cfg.Engine, computeWindows, computePairs)
	if err != nil {
		return err
	}
	series, bundle, err := loadBundle(cmd.Context(), computeCSV, args, computePeriod, eng)
	if err != nil {
		return err
	}
	if need := eng.MaxLookback(); series.Len() < need {
		log.Printf("[compute] %s: %d bars, longest indicator needs %d; early values are absent",
			series.Ticker, series.Len(), need)
	}
	if computeJSON {
		return writeJSON(cmd.OutOrStdout(), bundle)
	}
	printBundle(cmd.OutOrStdout(), series, bundle, computeLast, eng.CrossPairs)
	return nil
}

// engineOverrides applies --windows and --pairs on top of base. Empty
// flags keep the configured values.
func engineOverrides(base indicator.Config, windows, pairs string) (indicator.Config, error) {
	if windows != "" {
		ws, err := indicator.ParseWindows(windows)
		if err != nil {
			return base, err
		}
		base.MAWindows = ws
	}
	if pairs != "" {
		ps, err := indicator.ParseCrossPairs(pairs)
		if err != nil {
			return base, err
		}
		base.CrossPairs = ps
	}
	return base, base.Validate()
}

// loadSeries reads csvPath when set, otherwise fetches args[0] through the
// bar cache.
func loadSeries(ctx context.Context, csvPath string, args []string, period string) (model.PriceSeries, error) {
	switch {
	case csvPath != "":
		return readCSVFile(csvPath, tickerArg(args, csvPath))
	case len(args) == 1:
		return fetchSeries(ctx, args[0], period)
	default:
		return model.PriceSeries{}, fmt.Errorf("give a TICKER or --csv FILE")
	}
}

// loadBundle loads the series and computes it with eng.
func loadBundle(ctx context.Context, csvPath string, args []string, period string, eng indicator.Config) (model.PriceSeries, *model.IndicatorBundle, error) {
	series, err := loadSeries(ctx, csvPath, args, period)
	if err != nil {
		return model.PriceSeries{}, nil, err
	}
	bundle, err := indicator.Compute(series, eng)
	return series, bundle, err
}

// fetchSeries fetches daily bars through the cached fetcher of a fresh app.
func fetchSeries(ctx context.Context, ticker, period string) (model.PriceSeries, error) {
	rng, err := periodRange(period)
	if err != nil {
		return model.PriceSeries{}, err
	}
	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return model.PriceSeries{}, err
	}
	defer a.Close()
	return a.fetcher.Fetch(ctx, ticker, rng)
}

func periodRange(period string) (marketdata.Range, error) {
	if period == "" {
		period = cfg.Data.Period
	}
	return marketdata.ParseRange(period)
}

func readCSVFile(path, ticker string) (model.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.PriceSeries{}, err
	}
	defer f.Close()
	return marketdata.ReadCSV(f, ticker)
}

func tickerArg(args []string, fallback string) string {
	if len(args) > 0 {
		return args[0]
	}
	return fallback
}

func printBundle(w io.Writer, s model.PriceSeries, b *model.IndicatorBundle, last int, pairs []model.CrossPair) {
	windows := b.MAWindows()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "date\tclose\t")
	for _, win := range windows {
		fmt.Fprintf(tw, "sma%d\t", win)
	}
	fmt.Fprintln(tw, "rsi\tmacd\tsignal\thist\tbb_upper\tbb_lower\t")

	start := b.Len() - last
	if start < 0 || last <= 0 {
		start = 0
	}
	for i := start; i < b.Len(); i++ {
		fmt.Fprintf(tw, "%s\t%.2f\t", b.Dates[i].Format("2006-01-02"), s.Bars[i].Close)
		for _, win := range windows {
			fmt.Fprintf(tw, "%s\t", fmtValue(b.MA[win][i]))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			fmtValue(b.RSI[i]),
			fmtValue(b.MACD.Line[i]), fmtValue(b.MACD.Signal[i]), fmtValue(b.MACD.Histogram[i]),
			fmtValue(b.Bollinger.Upper[i]), fmtValue(b.Bollinger.Lower[i]))
	}
	tw.Flush()

	// Crosses grouped by pair, pairs in configured order.
	for _, p := range pairs {
		events := b.CrossesFor(p)
		if len(events) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", p)
		for _, ev := range events {
			fmt.Fprintf(w, "  %s  %s\n", ev.Date.Format("2006-01-02"), ev.Kind)
		}
	}
	fmt.Fprintf(w, "\n%s: %d bars, pairs %s, %d crosses\n",
		b.Ticker, b.Len(), indicator.FormatCrossPairs(pairs), len(b.Crosses))
}

func fmtValue(v model.Value) string {
	if !v.Valid {
		return "-"
	}
	return strconv.FormatFloat(v.V, 'f', 2, 64)
}

func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
