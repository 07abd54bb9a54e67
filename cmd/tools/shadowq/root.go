package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"shadowquery-workers/internal/common/config"
	"shadowquery-workers/internal/common/logger"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "shadowq",
	Short: "Inspect the search activity recorded in ChatGPT conversations",
	Long: `shadowq extracts the search queries and citations an assistant produced
while answering, grouped by the user prompt that triggered them.

Examples:
  shadowq extract --file conversation.json --pretty
  shadowq extract --id 6825c1e2-... --token $ACCESS_TOKEN
  shadowq debug --file conversation.json
  shadowq export --file conversation.json --out report.csv
  shadowq history --id 6825c1e2-...`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (defaults to configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
}

func newLogger() logger.Logger {
	return logger.NewStructured(logLevel, "console", "stderr")
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// readInput reads a whole file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
