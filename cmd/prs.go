package cmd

import (
	"fmt"
	"strings"

	"github.com/naka-gawa/github-mining/internal/domain"
	"github.com/naka-gawa/github-mining/internal/report"
	"github.com/naka-gawa/github-mining/internal/usecase"
	"github.com/spf13/cobra"
)

var prsCmd = &cobra.Command{
	Use:   "prs",
	Short: "Collect reviewed pull requests of the selected repositories",
	Long: `Collects the merged and closed pull requests of every owner,name row
of --repos-csv with the GraphQL API, keeping those with at least
--min-reviews reviews whose review time is at least --min-hours.`,
	Args: cobra.NoArgs,
	RunE: runPullRequests,
}

func runPullRequests(cmd *cobra.Command, args []string) error {
	reposCSV, _ := cmd.Flags().GetString("repos-csv")
	out, _ := cmd.Flags().GetString("out")
	opts := usecase.DefaultPullRequestOptions()
	opts.MaxPerRepo, _ = cmd.Flags().GetInt("max-prs-per-repo")
	opts.MinReviews, _ = cmd.Flags().GetInt("min-reviews")
	opts.MinHours, _ = cmd.Flags().GetFloat64("min-hours")

	repos, err := readRepositoryRefs(reposCSV)
	if err != nil {
		return err
	}
	collector, err := newCollector()
	if err != nil {
		return err
	}
	prs, err := collector.CollectPullRequests(cmd.Context(), repos, opts)
	if err != nil {
		return err
	}
	if err := report.WriteRecords(out, domain.PullRequestColumns, prs); err != nil {
		return err
	}
	logger.Info().Int("rows", len(prs)).Int("repositories", len(repos)).Str("out", out).Msg("Wrote pull requests")
	return nil
}

// readRepositoryRefs reads the owner and name columns of a CSV file.
// Rows with an empty owner or name are skipped.
func readRepositoryRefs(path string) ([]usecase.RepositoryRef, error) {
	table, err := report.ReadTable(path)
	if err != nil {
		return nil, err
	}
	owners, ok := table.Strings("owner")
	if !ok {
		return nil, fmt.Errorf("%s has no owner column", path)
	}
	names, ok := table.Strings("name")
	if !ok {
		return nil, fmt.Errorf("%s has no name column", path)
	}

	refs := make([]usecase.RepositoryRef, 0, len(owners))
	for i := range owners {
		owner, name := strings.TrimSpace(owners[i]), strings.TrimSpace(names[i])
		if owner == "" || name == "" {
			continue
		}
		refs = append(refs, usecase.RepositoryRef{Owner: owner, Name: name})
	}
	return refs, nil
}

func init() {
	rootCmd.AddCommand(prsCmd)

	defaults := usecase.DefaultPullRequestOptions()
	prsCmd.Flags().String("repos-csv", "data/selected_repos.csv", "CSV with owner,name columns, as written by select")
	prsCmd.Flags().Int("max-prs-per-repo", defaults.MaxPerRepo, "Maximum pull requests kept per repository (0 = unlimited)")
	prsCmd.Flags().Int("min-reviews", defaults.MinReviews, "Minimum number of reviews")
	prsCmd.Flags().Float64("min-hours", defaults.MinHours, "Minimum hours between creation and merge or close")
	prsCmd.Flags().StringP("out", "o", "data/prs_dataset.csv", "Output CSV path")
}
