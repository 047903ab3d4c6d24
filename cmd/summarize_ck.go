package cmd

import (
	"errors"
	"io/fs"

	"github.com/naka-gawa/github-mining/internal/logging"
	"github.com/naka-gawa/github-mining/internal/report"
	"github.com/naka-gawa/github-mining/internal/usecase"
	"github.com/spf13/cobra"
)

var summarizeCKCmd = &cobra.Command{
	Use:   "summarize-ck",
	Short: "Summarize CK class metrics per repository",
	Long: `Reads the class.csv written by the CK tool in every sub-directory of
--ck-root and writes the median, mean and standard deviation of cbo, dit,
lcom and loc per repository. Sub-directories are named owner__repo. When
--repos-csv exists, its columns are joined on the repository key.`,
	Example: `  github-mining summarize-ck --ck-root data/ck_output --repos-csv data/java_repos_top1000.csv --out data/summaries/summary_per_repo.csv`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, _ := cmd.Flags().GetString("ck-root")
		reposCSV, _ := cmd.Flags().GetString("repos-csv")
		out, _ := cmd.Flags().GetString("out")
		workers, _ := cmd.Flags().GetInt("workers")

		summaries, err := usecase.NewCKSummarizer(workers, logging.NewLogger("usecase")).Summarize(cmd.Context(), root)
		if err != nil {
			return err
		}

		var meta *report.Table
		if reposCSV != "" {
			meta, err = report.ReadTable(reposCSV)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				logger.Warn().Str("repos_csv", reposCSV).Msg("Repository CSV not found, writing metrics only")
				meta = nil
			case err != nil:
				return err
			}
		}

		table, err := usecase.SummaryTable(summaries, meta)
		if err != nil {
			return err
		}
		if err := table.Write(out); err != nil {
			return err
		}
		logger.Info().Int("rows", len(table.Rows)).Str("out", out).Msg("Wrote CK summary")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summarizeCKCmd)

	summarizeCKCmd.Flags().String("ck-root", "", "Directory holding one CK output directory per repository")
	summarizeCKCmd.Flags().String("repos-csv", "", "Repository metadata CSV with a full_name column, as written by top")
	summarizeCKCmd.Flags().StringP("out", "o", "", "Output CSV path")
	summarizeCKCmd.Flags().Int("workers", 0, "Repositories summarized in parallel (0 = one per CPU)")
	_ = summarizeCKCmd.MarkFlagRequired("ck-root")
	_ = summarizeCKCmd.MarkFlagRequired("out")
}
