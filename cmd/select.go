package cmd

import (
	"github.com/naka-gawa/github-mining/internal/domain"
	"github.com/naka-gawa/github-mining/internal/report"
	"github.com/naka-gawa/github-mining/internal/usecase"
	"github.com/spf13/cobra"
)

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Select popular repositories with enough reviewed pull requests",
	Long: `Searches repositories with the GraphQL API, skips forks and archived
repositories, and keeps those with at least --min-prs merged and closed pull
requests until --target repositories are selected. The result is sorted by
stars, highest first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := usecase.DefaultSelectOptions()
		opts.Query, _ = cmd.Flags().GetString("query")
		opts.Target, _ = cmd.Flags().GetInt("target")
		opts.MinPRs, _ = cmd.Flags().GetInt("min-prs")
		out, _ := cmd.Flags().GetString("out")

		collector, err := newCollector()
		if err != nil {
			return err
		}
		selected, err := collector.SelectRepositories(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if len(selected) < opts.Target {
			logger.Warn().Int("selected", len(selected)).Int("target", opts.Target).Msg("Search exhausted before reaching the target")
		}
		if err := report.WriteRecords(out, domain.CandidateColumns, selected); err != nil {
			return err
		}
		logger.Info().Int("rows", len(selected)).Str("out", out).Msg("Wrote selected repositories")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(selectCmd)

	defaults := usecase.DefaultSelectOptions()
	selectCmd.Flags().String("query", defaults.Query, "GraphQL repository search query")
	selectCmd.Flags().Int("target", defaults.Target, "Number of repositories to select")
	selectCmd.Flags().Int("min-prs", defaults.MinPRs, "Minimum merged plus closed pull requests")
	selectCmd.Flags().StringP("out", "o", "data/selected_repos.csv", "Output CSV path")
}
