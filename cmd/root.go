package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/ragassist/cli/internal/config"
	"github.com/ragassist/cli/internal/logging"
	"github.com/ragassist/cli/pkg/process"
)

// Metadata is stamped into the binary at build time.
type Metadata struct {
	Version string
	Commit  string
}

var metadata = Metadata{Version: "dev", Commit: "none"}

type configKey struct{}

var rootCmd = &cobra.Command{
	Use:   "ragassist",
	Short: "Send text to a local processing server and read the answer",
	Long: `ragassist is a terminal client for a locally running text-processing server.

It posts your text as {"text": "..."} to the server's /process endpoint and
shows the "response" field of the reply.

Examples:
  # One-shot request
  ragassist send "Where did I read about vector databases?"

  # Interactive session
  ragassist popup

  # Talk to a server on another port
  ragassist --endpoint http://127.0.0.1:8000/process send "hello"`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("endpoint", config.DefaultEndpoint, "URL of the processing endpoint")
	pf.String("config", "", "Path to a YAML config file (default $HOME/.config/ragassist/config.yaml)")
	pf.Duration("timeout", 0, "Request timeout, e.g. 30s (0 waits indefinitely)")
	pf.String("log-level", config.DefaultLogLevel, "Diagnostic log level (trace, debug, info, warn, error, off)")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(popupCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(completionCmd)
}

// Execute runs the root command.
func Execute(ctx context.Context, m Metadata) error {
	if m.Version != "" {
		metadata = m
	}
	return fang.Execute(ctx, rootCmd, fang.WithVersion(metadata.Version))
}

func loadConfig(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(config.Options{
		ConfigFile: configFile,
		DotEnv:     ".env",
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logging.Init(os.Stderr, level)
	logging.Get().Debug("configuration loaded", logging.Get().Args(
		"endpoint", cfg.Endpoint,
		"config_file", cfg.ConfigFile,
		"version", metadata.Version,
	))

	cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
	return nil
}

// getConfig returns the configuration resolved in PersistentPreRunE.
func getConfig(cmd *cobra.Command) *config.Config {
	if cfg, ok := cmd.Context().Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	panic(fmt.Sprintf("configuration not loaded for %q", cmd.CommandPath()))
}

func newProcessClient(cfg *config.Config) *process.Client {
	return process.New(cfg.Endpoint, process.WithTimeout(cfg.Timeout))
}
