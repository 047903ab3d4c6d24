package cmd

import (
	"github.com/naka-gawa/github-mining/internal/domain"
	"github.com/naka-gawa/github-mining/internal/report"
	"github.com/spf13/cobra"
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Collect the most starred repositories of a language",
	Long: `Collects the most starred repositories written in a language, with
their rank, release count and age in years, and writes them to a CSV file.`,
	Example: `  github-mining top --language Java --count 1000 --out data/java_repos_top1000.csv`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		language, _ := cmd.Flags().GetString("language")
		count, _ := cmd.Flags().GetInt("count")
		out, _ := cmd.Flags().GetString("out")

		collector, err := newCollector()
		if err != nil {
			return err
		}
		repos, err := collector.TopRepositories(cmd.Context(), language, count)
		if err != nil {
			return err
		}
		if err := report.WriteRecords(out, domain.TopRepositoryColumns, repos); err != nil {
			return err
		}
		logger.Info().Int("rows", len(repos)).Str("out", out).Msg("Wrote top repositories")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(topCmd)

	topCmd.Flags().String("language", "Java", "Primary language of the repositories")
	topCmd.Flags().Int("count", 1000, "Number of repositories to collect (at most 1000)")
	topCmd.Flags().StringP("out", "o", "", "Output CSV path")
	_ = topCmd.MarkFlagRequired("out")
}
