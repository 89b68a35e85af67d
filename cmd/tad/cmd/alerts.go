package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/studio2230704/technical-analysis-dashboard/internal/metrics"
	"github.com/studio2230704/technical-analysis-dashboard/internal/notification"
)

var (
	alertsJSON   bool
	alertsLimit  int
	watchMetrics string
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Check the watchlist for crossover and RSI alerts",
	Long: `Check every watchlist ticker's latest bar for golden/dead crosses and RSI
extremes. New alerts are journaled, published and sent to the configured
notifiers.

Subcommands:
  run    - Run one check now
  watch  - Run on the configured schedule until interrupted
  recent - Show journaled alerts`,
}

var alertsRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one alert check now",
	RunE:  runAlertsRun,
}

var alertsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run alert checks on the configured schedule",
	RunE:  runAlertsWatch,
}

var alertsRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show recently journaled alerts",
	RunE:  runAlertsRecent,
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsRunCmd, alertsWatchCmd, alertsRecentCmd)

	alertsRunCmd.Flags().BoolVar(&alertsJSON, "json", false, "print JSON")
	alertsRecentCmd.Flags().BoolVar(&alertsJSON, "json", false, "print JSON")
	alertsRecentCmd.Flags().IntVarP(&alertsLimit, "limit", "n", 20, "number of alerts")
	alertsWatchCmd.Flags().StringVar(&watchMetrics, "metrics-addr", ":9090", "metrics and health listen address (empty disables)")
}

func runAlertsRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	alerts, err := a.svc.RunOnce(ctx)
	if err != nil {
		return err
	}
	if alertsJSON {
		return writeJSON(cmd.OutOrStdout(), alerts)
	}
	if len(alerts) == 0 {
		printf(cmd, "no new alerts (%d tickers checked)\n", a.watchlist.Len())
		return nil
	}
	for _, al := range alerts {
		printf(cmd, "%s\n", notification.Title(al))
	}
	return nil
}

func runAlertsWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if watchMetrics != "" {
		srv := metrics.NewServer(watchMetrics, a.registry, a.health)
		srv.Start()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			srv.Stop(shutdownCtx)
		}()
	}
	a.startLiveness(ctx)

	sch, err := a.svc.Start(ctx)
	if err != nil {
		return err
	}
	log.Printf("[tad] watching %d tickers (%s), ctrl-c to stop", a.watchlist.Len(), cfg.Alerts.Schedule)
	<-ctx.Done()
	sch.Stop()
	log.Println("[tad] stopped")
	return nil
}

func runAlertsRecent(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	alerts, err := a.svc.RecentAlerts(ctx, alertsLimit)
	if err != nil {
		return err
	}
	if alertsJSON {
		return writeJSON(cmd.OutOrStdout(), alerts)
	}
	for _, al := range alerts {
		printf(cmd, "%s  %s\n", al.CreatedAt.Local().Format("2006-01-02 15:04"), notification.Title(al))
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
