// Package cli implements the veridi command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veridichain/veridi/internal/daemon"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "veridi",
	Short: "Green hydrogen credit ledger and compliance engine",
	Long: `Veridi tracks green hydrogen credits from issuance to retirement.
Producers issue credits for hydrogen produced, factories and citizens buy
them, factories work toward environmental quotas, and regulators freeze
accounts, certify producers, audit activity and issue compliance
certificates.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $VERIDI_HOME/config.toml)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config named by --config, or the default path.
func loadConfig() (daemon.Config, string, error) {
	path := configPath
	if path == "" {
		path = daemon.ConfigPath()
	}
	cfg, err := daemon.LoadConfig(path)
	if err != nil {
		return cfg, path, err
	}
	return cfg, path, nil
}

// loadProvisioned loads the config and persists any newly bound accounts
// so role addresses stay stable across restarts.
func loadProvisioned() (daemon.Config, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return cfg, err
	}
	added, err := cfg.Provision()
	if err != nil {
		return cfg, err
	}
	if added {
		if err := daemon.SaveConfig(path, cfg); err != nil {
			return cfg, err
		}
		fmt.Fprintf(os.Stderr, "Provisioned role accounts in %s\n", path)
	}
	return cfg, nil
}
