package cmd

import (
	"time"

	"github.com/naka-gawa/github-mining/internal/logging"
	"github.com/naka-gawa/github-mining/internal/usecase"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a Markdown report of a repository search CSV",
	Long: `Summarizes a CSV written by search: push recency, topics against
stars, and stars by language, owner type and license. Charts are written to
a charts directory next to the report.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("csv")
		out, _ := cmd.Flags().GetString("out")
		return usecase.WriteReport(input, out, time.Now().UTC(), logging.NewLogger("usecase"))
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("csv", "repos.csv", "Repository CSV, as written by search")
	reportCmd.Flags().StringP("out", "o", "report.md", "Output Markdown path")
}
