// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/naka-gawa/github-mining/internal/config"
	"github.com/naka-gawa/github-mining/internal/gateway"
	"github.com/naka-gawa/github-mining/internal/logging"
	"github.com/naka-gawa/github-mining/internal/metrics"
	"github.com/naka-gawa/github-mining/internal/pagination"
	"github.com/naka-gawa/github-mining/internal/usecase"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg    *config.Config
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "github-mining",
	Short: "A CLI tool to mine GitHub repositories for empirical studies.",
	Long: `github-mining collects repository and pull request datasets from the
GitHub REST and GraphQL APIs, summarizes CK code quality metrics, and
correlates process metrics with quality metrics.

Fetching commands need a token in GITHUB_TOKEN (a .env file is read).`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if cfg != nil && cfg.Metrics.File != "" {
		if merr := metrics.WriteFile(cfg.Metrics.File); merr != nil {
			logger.Error().Err(merr).Msg("Failed to export metrics")
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().String("log-format", "console", "Log output format: console or json")
	rootCmd.PersistentFlags().String("config", "", "Path to a configuration file (default ./github-mining.yaml if present)")
	rootCmd.PersistentFlags().String("metrics-file", "", "Write Prometheus metrics to this file on exit")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	v := viper.New()
	if err := v.BindPFlag("log.format", cmd.Flags().Lookup("log-format")); err != nil {
		return err
	}
	if err := v.BindPFlag("metrics.file", cmd.Flags().Lookup("metrics-file")); err != nil {
		return err
	}
	configFile, _ := cmd.Flags().GetString("config")

	loaded, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		loaded.Log.Level = "debug"
	}
	cfg = loaded
	logger = logging.Setup(logging.Config{
		Level:  cfg.Log.Level,
		Format: logging.Format(cfg.Log.Format),
		Output: os.Stderr,
	})
	return nil
}

// newCollector wires the gateway, retry policy and throttle into a
// collector. It fails before any request when no token is configured.
func newCollector() (*usecase.Collector, error) {
	githubGateway, err := gateway.NewGitHubGateway(cfg.Gateway(), logging.NewLogger("gateway"))
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub gateway: %w", err)
	}
	return usecase.NewCollector(
		githubGateway,
		cfg.RetryPolicy(logging.NewLogger("retry")),
		pagination.NewThrottle(cfg.Throttle.Delay),
		logging.NewLogger("usecase"),
	), nil
}
