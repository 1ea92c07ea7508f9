package cli

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/tutu-network/vitals/internal/daemon"
)

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the Vitals configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config.toml",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := daemon.ConfigPath()
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := daemon.SaveConfig(daemon.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := daemon.LoadConfig()
		if err != nil {
			return err
		}
		if cfg.Platform.Password != "" {
			cfg.Platform.Password = "********"
		}
		return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), daemon.ConfigPath())
	},
}
