package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/chatflow/internal/config"
	"github.com/aretw0/chatflow/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chatflow",
	Short: "chatflow is a conversational quality engine for property assistants",
	Long: `chatflow analyzes user messages, drives a property-inquiry conversation
through its states, builds personalized replies and scores every turn.

Configuration comes from a .env file, CHATFLOW_* and OPENAI_* variables and an
optional YAML file (--config or CHATFLOW_CONFIG). Flags override both.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().String("transitions", "", "Path to a YAML transition table")
	rootCmd.PersistentFlags().String("locale-dir", "", "Directory of locale bundles replacing the built-in ones")
}

// loadConfig resolves the configuration and applies the persistent flags on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	overrides := map[string]*string{
		"log-level":   &cfg.LogLevel,
		"log-format":  &cfg.LogFormat,
		"transitions": &cfg.TransitionsPath,
		"locale-dir":  &cfg.LocaleDir,
	}
	for flag, dst := range overrides {
		if cmd.Flags().Changed(flag) {
			*dst, _ = cmd.Flags().GetString(flag)
		}
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	return logging.FromConfig(cfg.LogFormat, cfg.LogLevel)
}
