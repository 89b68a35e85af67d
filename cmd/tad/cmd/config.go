package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/studio2230704/technical-analysis-dashboard/config"
)

var (
	configInitOutput string
	configInitForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage the tad configuration file.

Subcommands:
  init     - Generate a default configuration file
  validate - Load and validate the configuration (file + environment)

Examples:
  tad config init -o config.yaml
  tad config validate -c config.yaml`,
	Annotations: map[string]string{"config": "skip"},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", config.DefaultPath, "output config file path")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configInitOutput); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configInitOutput)
	}
	if err := config.Default().SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	printf(cmd, "✓ Created default configuration: %s\n", configInitOutput)
	printf(cmd, "\nEdit the file and run with:\n  tad serve -c %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	printf(cmd, "✓ Configuration valid: %s\n", cfgFile)
	printf(cmd, "  Engine: SMA %v, RSI %d, MACD %d/%d/%d, BB %d/%.1f\n",
		c.Engine.Windows(), c.Engine.RSIPeriod, c.Engine.MACDFast, c.Engine.MACDSlow, c.Engine.MACDSignal,
		c.Engine.BollingerWindow, c.Engine.BollingerK)
	printf(cmd, "  Alerts: %s on %s (%s)\n", c.Alerts.CrossPair, c.Alerts.Schedule, c.Alerts.Timezone)
	printf(cmd, "  Storage: %s, redis %t\n", c.Storage.SQLitePath, c.Storage.Redis.Enabled)
	printf(cmd, "  Notify: log %t, telegram %t, webhook %t\n", c.Notify.Log, c.Notify.Telegram.Enabled, c.Notify.Webhook.Enabled)
	return nil
}
