package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/aegis/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate an Aegis configuration file without starting the server.

Defaults are applied before validation, so a file only needs the fields
it overrides. Every problem is reported, not just the first one.

Examples:
  # Validate the default config file
  aegis validate

  # Validate a specific file
  aegis validate --config /etc/aegis/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", cfgFile, err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", cfgFile, err)
	}
	config.ApplyDefaults(&cfg)

	if err := config.Validate(&cfg); err != nil {
		var validationErr config.ValidationError
		if errors.As(err, &validationErr) {
			fmt.Printf("✗ %s has %d problem(s):\n\n", cfgFile, len(validationErr.Errors))
			for _, fieldErr := range validationErr.Errors {
				fmt.Printf("  %s: %s\n", fieldErr.Field, fieldErr.Message)
			}
			fmt.Println()
			return fmt.Errorf("configuration invalid")
		}
		return err
	}

	fmt.Printf("✓ %s is valid\n", cfgFile)
	if verbose {
		fmt.Printf("  listen address: %s\n", cfg.Server.ListenAddress)
		fmt.Printf("  policy floor:   %s\n", cfg.Governance.PolicyFloor)
		fmt.Printf("  audit backend:  %s\n", cfg.Audit.Backend)
		fmt.Printf("  actors:         %d\n", len(cfg.MACI.Actors))
	}
	return nil
}
