package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"conference-assistant/internal/config"
)

var (
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "conference-assistant",
	Short: "Document and conference QA backend",
	Long: `conference-assistant ingests school reports and parent-teacher conference
recordings and answers questions about them in the parent's language.

Commands:
  serve        - run the HTTP API
  lambda       - run as an API Gateway Lambda handler
  conferences  - inspect stored conferences`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $CONFIG_PATH or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
}

// lambdaRuntimeEnv is set by the Lambda runtime, which starts the bootstrap
// binary without arguments.
const lambdaRuntimeEnv = "AWS_LAMBDA_RUNTIME_API"

func main() {
	if args, ok := lambdaArgs(os.Args[1:], os.Getenv); ok {
		rootCmd.SetArgs(args)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// lambdaArgs selects the lambda command when running inside the Lambda
// runtime with no explicit command line.
func lambdaArgs(args []string, getenv func(string) string) ([]string, bool) {
	if len(args) > 0 || getenv(lambdaRuntimeEnv) == "" {
		return nil, false
	}
	return []string{lambdaCmd.Use}, true
}

// loadConfig reads .env, then the YAML config, and installs the default logger.
func loadConfig() (*config.AppConfig, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	path := cfgFile
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(cfg.Logging))
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func exitError(msg string, err error) error {
	slog.Error(msg, "err", err)
	return fmt.Errorf("%s: %w", msg, err)
}
