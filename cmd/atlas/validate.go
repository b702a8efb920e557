package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/atlas/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load and validate the configuration file, reporting every invalid
field rather than stopping at the first.

Examples:
  atlas validate
  atlas validate --config /etc/atlas/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err == nil {
		fmt.Printf("✓ %s is valid\n", cfgFile)
		return nil
	}

	var validationErr config.ValidationError
	if errors.As(err, &validationErr) {
		fmt.Printf("✗ %s has %d problem(s):\n\n", cfgFile, len(validationErr.Errors))
		for _, fieldErr := range validationErr.Errors {
			fmt.Printf("  %s: %s\n", fieldErr.Field, fieldErr.Message)
		}
		return fmt.Errorf("configuration validation failed")
	}
	return err
}
