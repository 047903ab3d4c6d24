package cmd

import (
	"fmt"

	"github.com/naka-gawa/github-mining/internal/domain"
	"github.com/naka-gawa/github-mining/internal/report"
	"github.com/naka-gawa/github-mining/internal/usecase"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search repositories with the REST API and write them to a CSV file",
	Long: `Runs a repository search with the GitHub REST API and writes every
result, flattened to one row per repository, to a CSV file. The search API
returns at most 1000 results per query.`,
	Example: `  github-mining search --query "language:Go stars:>50" --max 500 --out repos.csv`,
	Args:    cobra.NoArgs,
	RunE:    runSearch,
}

var validSorts = map[string]bool{"": true, "stars": true, "forks": true, "help-wanted-issues": true, "updated": true}

func runSearch(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	sortBy, _ := cmd.Flags().GetString("sort")
	order, _ := cmd.Flags().GetString("order")
	maxResults, _ := cmd.Flags().GetInt("max")
	pageSize, _ := cmd.Flags().GetInt("page-size")
	out, _ := cmd.Flags().GetString("out")

	if !validSorts[sortBy] {
		return fmt.Errorf("invalid --sort %q: must be stars, forks, help-wanted-issues or updated", sortBy)
	}
	if order != "asc" && order != "desc" {
		return fmt.Errorf("invalid --order %q: must be asc or desc", order)
	}

	collector, err := newCollector()
	if err != nil {
		return err
	}
	repos, err := collector.SearchRepositories(cmd.Context(), usecase.SearchOptions{
		Query:      domain.SearchQuery{Query: query, Sort: sortBy, Order: order},
		MaxResults: maxResults,
		PageSize:   pageSize,
	})
	if err != nil {
		return err
	}

	if err := report.WriteRecords(out, domain.RepositoryColumns, repos); err != nil {
		return err
	}
	logger.Info().Int("rows", len(repos)).Str("out", out).Msg("Wrote repositories")
	return nil
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().String("query", "stars:>10", "GitHub search query, e.g. 'language:TypeScript stars:>50 pushed:>2024-01-01'")
	searchCmd.Flags().String("sort", "stars", "Sort field: stars, forks, help-wanted-issues or updated")
	searchCmd.Flags().String("order", "desc", "Sort order: asc or desc")
	searchCmd.Flags().Int("max", 1000, "Maximum repositories to fetch (at most 1000)")
	searchCmd.Flags().Int("page-size", 100, "Results per page (at most 100)")
	searchCmd.Flags().StringP("out", "o", "repos.csv", "Output CSV path")
}
