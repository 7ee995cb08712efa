package main

import (
	"fmt"

	"github.com/nffu/fenetre/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a fenetre configuration file without contacting the backend.

This command parses the YAML, expands environment variables, and checks
all fields, including the merged backoff policy. It's useful for CI/CD
pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  fenetre validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := config.BuildOptions(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	policy := config.BuildBackoff(cfg.Backoff)
	attempts := "unlimited"
	if policy.MaxAttempts > 0 {
		attempts = fmt.Sprintf("%d", policy.MaxAttempts)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Backend:  %s\n", cfg.Backend.BaseURL)
	fmt.Fprintf(out, "  Port:     %d\n", cfg.Port)
	fmt.Fprintf(out, "  Timeout:  %s\n", cfg.Backend.Timeout.Duration())
	fmt.Fprintf(out, "  Headers:  %d\n", len(cfg.Backend.Headers))
	fmt.Fprintf(out, "  Backoff:  %s x%g up to %s, attempts %s\n",
		policy.Initial, policy.Factor, policy.Max, attempts)

	return nil
}
