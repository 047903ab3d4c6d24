package cmd

import (
	"github.com/naka-gawa/github-mining/internal/analysis"
	"github.com/naka-gawa/github-mining/internal/logging"
	"github.com/naka-gawa/github-mining/internal/report"
	"github.com/naka-gawa/github-mining/internal/usecase"
	"github.com/spf13/cobra"
)

var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Correlate process metrics with CK quality metrics",
	Long: `Computes the Pearson and Spearman coefficients, with two-sided
p-values, of every process metric against every quality metric of a CK
summary, writes them to correlations.csv in --out-dir, and plots each
process metric against the mean quality metrics.`,
	Example: `  github-mining correlate --summary data/summaries/summary_per_repo.csv --out-dir reports/plots`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		summaryPath, _ := cmd.Flags().GetString("summary")
		outDir, _ := cmd.Flags().GetString("out-dir")
		minSamples, _ := cmd.Flags().GetInt("min-samples")

		summary, err := report.ReadTable(summaryPath)
		if err != nil {
			return err
		}
		files, err := usecase.AnalyzeCorrelations(summary, outDir, minSamples, logging.NewLogger("usecase"))
		if err != nil {
			return err
		}
		logger.Info().Int("files", len(files)).Str("out_dir", outDir).Msg("Wrote correlation analysis")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(correlateCmd)

	correlateCmd.Flags().String("summary", "", "CK summary CSV, as written by summarize-ck")
	correlateCmd.Flags().String("out-dir", "", "Directory for correlations.csv and the plots")
	correlateCmd.Flags().Int("min-samples", analysis.DefaultMinSamples, "Minimum complete pairs for a coefficient")
	_ = correlateCmd.MarkFlagRequired("summary")
	_ = correlateCmd.MarkFlagRequired("out-dir")
}
