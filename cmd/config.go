package cmd

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ragassist/cli/internal/config"
	"github.com/ragassist/cli/pkg/util"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the configuration after applying flags, RAGASSIST_* environment
variables, the config file and .env, in that order of precedence.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().StringP("output", "o", "", "Output format (json)")
}

func printConfig(w io.Writer, cfg *config.Config, output string) error {
	if output != "" && output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}
	if output == "json" {
		return util.PrintJSON(w, cfg)
	}

	rows := pterm.TableData{
		{"Setting", "Value"},
		{"Endpoint", cfg.Endpoint},
		{"Timeout", util.FormatTimeout(cfg.Timeout)},
		{"Overlap", cfg.Overlap},
		{"Log level", cfg.LogLevel},
		{"Config file", util.OrDash(cfg.ConfigFile)},
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).WithWriter(w).Render()
}

func runConfig(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	return printConfig(cmd.OutOrStdout(), getConfig(cmd), output)
}
