package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jgoulah/ecomane/internal/config"
)

var (
	initAddress string
	initForce   bool
)

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a config file with the default settings",
	Args:  cobra.NoArgs,
	RunE:  runInitConfig,
}

func init() {
	initConfigCmd.Flags().StringVar(&initAddress, "address", "", "Eco Mane address (default 192.168.1.220)")
	initConfigCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initConfigCmd)
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg, err := config.Default()
	if err != nil {
		return err
	}
	if initAddress != "" {
		cfg.Device.Address = initAddress
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("✓ Config written to %s\n", path)
	return nil
}
