package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studio2230704/technical-analysis-dashboard/internal/notification"
	"github.com/studio2230704/technical-analysis-dashboard/internal/portfolio"
)

var (
	orderAssets      float64
	orderRisk        float64
	orderBuffer      float64
	orderRR          float64
	orderLookback    int
	orderMaxExposure float64
	orderName        string
	orderPeriod      string
	orderCSV         string
	orderJSON        bool
)

var orderCmd = &cobra.Command{
	Use:   "order [TICKER]",
	Short: "Size a buy order from a risk budget",
	Long: `Size a market buy at the last close. The stop sits a buffer below the
swing low of the lookback window, the share count risks at most
--risk percent of --assets, and the take-profit is set at the
risk/reward ratio.

Settings default to the risk section of the config file.

Examples:
  tad order 7203.T --assets 3000000
  tad order AAPL --assets 100000 --risk 1 --rr 3
  tad order --csv prices.csv --assets 100000 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOrder,
}

func init() {
	rootCmd.AddCommand(orderCmd)
	orderCmd.Flags().Float64Var(&orderAssets, "assets", 0, "total assets (default risk.total_assets)")
	orderCmd.Flags().Float64Var(&orderRisk, "risk", 0, "risk per trade in percent of assets")
	orderCmd.Flags().Float64Var(&orderBuffer, "buffer", -1, "stop buffer below the swing low in percent")
	orderCmd.Flags().Float64Var(&orderRR, "rr", 0, "reward multiple of the risk")
	orderCmd.Flags().IntVar(&orderLookback, "lookback", 0, "bars searched for the swing low")
	orderCmd.Flags().Float64Var(&orderMaxExposure, "max-exposure", -1, "cap position value in percent of assets (0 = no cap)")
	orderCmd.Flags().StringVar(&orderName, "name", "", "display name (default ticker)")
	orderCmd.Flags().StringVarP(&orderPeriod, "period", "p", "3mo", "history period")
	orderCmd.Flags().StringVar(&orderCSV, "csv", "", "read bars from a CSV file")
	orderCmd.Flags().BoolVar(&orderJSON, "json", false, "print JSON")
}

func runOrder(cmd *cobra.Command, args []string) error {
	limits := cfg.Risk
	if orderAssets > 0 {
		limits.TotalAssets = orderAssets
	}
	if orderRisk > 0 {
		limits.RiskPercent = orderRisk
	}
	if orderBuffer >= 0 {
		limits.StopBufferPercent = orderBuffer
	}
	if orderRR > 0 {
		limits.RiskReward = orderRR
	}
	if orderLookback > 0 {
		limits.LookbackDays = orderLookback
	}
	if orderMaxExposure >= 0 {
		limits.MaxExposurePercent = orderMaxExposure
	}
	if err := limits.Validate(); err != nil {
		return fmt.Errorf("order: %w", err)
	}

	series, err := loadSeries(cmd.Context(), orderCSV, args, orderPeriod)
	if err != nil {
		return err
	}
	o, err := portfolio.CalculateOrderInfo(series, orderName, limits)
	if err != nil {
		return err
	}
	if orderJSON {
		return writeJSON(cmd.OutOrStdout(), o)
	}
	printf(cmd, "%s\n", notification.OrderText(*o))
	printf(cmd, "\nswing low %s over %d bars to %s, risk %s, reward %s\n",
		o.SwingLow.StringFixed(2), limits.LookbackDays, o.Date.Format("2006-01-02"),
		o.RiskAmount.StringFixed(2), o.RewardAmount.StringFixed(2))
	return nil
}
