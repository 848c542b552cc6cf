// Package main is the ragapi CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/ragapi/internal/config"
	"github.com/hyperjump/ragapi/pkg/utils"
)

var version = "dev"

const defaultServerURL = "http://localhost:8080"

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	debug      bool
}

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "ragapi",
		Short:         "Document ingestion and semantic retrieval service",
		Long:          "ragapi chunks uploaded documents, embeds the chunks and answers similarity queries over them.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file path (default: ./config.yaml when present)")
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newServeCmd(flags),
		newIngestCmd(flags),
		newQueryCmd(flags),
		newDeleteCmd(flags),
		newStatusCmd(flags),
		newWatchCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// loadConfig loads config from path. With an empty path it uses config.yaml in
// the current directory when one exists, and environment plus defaults otherwise.
// Returns the config and the path that was loaded ("" when none).
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads config and builds the logger for a command.
func setup(flags *globalFlags) (*config.Config, string, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(flags.configPath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flags.debug {
		cfg.Debug = true
	}
	logger, err := utils.NewLogger(cfg.Log.Level, cfg.Debug)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create logger: %w", err)
	}
	for _, w := range cfg.Warnings() {
		logger.Warn("config warning", zap.String("warning", w))
	}
	return cfg, resolved, logger, nil
}
