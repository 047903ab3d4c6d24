package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/naka-gawa/github-mining/internal/analysis"
	"github.com/naka-gawa/github-mining/internal/domain"
	"github.com/naka-gawa/github-mining/internal/report"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// CKClassFile is the class-level output file of the CK tool.
const CKClassFile = "class.csv"

// CKSummarizer summarizes the CK output of many repositories.
// Every sub-directory of the CK root holds the output of one repository
// and is named "owner__repo".
type CKSummarizer struct {
	workers int
	logger  zerolog.Logger
}

// NewCKSummarizer creates a new CKSummarizer. workers <= 0 uses one worker
// per CPU.
func NewCKSummarizer(workers int, logger zerolog.Logger) *CKSummarizer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &CKSummarizer{
		workers: workers,
		logger:  logger.With().Str("component", "ck_summarizer").Logger(),
	}
}

// Summarize reads every class file under root concurrently. Directories
// without a class file, or whose class file lacks a metric column, are
// skipped. Results are ordered by repository key.
func (s *CKSummarizer) Summarize(ctx context.Context, root string) ([]domain.CKSummary, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read CK root %s: %w", root, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)

	results := make([]*domain.CKSummary, len(dirs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)
	for i, dir := range dirs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			summary, ok, err := s.summarizeRepo(filepath.Join(root, dir), dir)
			if err != nil {
				return err
			}
			if ok {
				results[i] = &summary
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	summaries := make([]domain.CKSummary, 0, len(results))
	for _, r := range results {
		if r != nil {
			summaries = append(summaries, *r)
		}
	}
	s.logger.Info().Int("directories", len(dirs)).Int("summarized", len(summaries)).Msg("CK summary complete")
	return summaries, nil
}

func (s *CKSummarizer) summarizeRepo(dir, key string) (domain.CKSummary, bool, error) {
	table, err := report.ReadTable(filepath.Join(dir, CKClassFile))
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug().Str("repo_key", key).Msg("No class file, skipping")
		return domain.CKSummary{}, false, nil
	}
	if err != nil {
		return domain.CKSummary{}, false, err
	}

	columns := make(map[string][]float64, len(domain.CKMetrics))
	for _, m := range domain.CKMetrics {
		if values, ok := table.Floats(m); ok {
			columns[m] = values
		}
	}
	summary, ok := analysis.SummarizeCK(key, columns)
	if !ok {
		s.logger.Warn().Str("repo_key", key).Msg("Class file lacks a CK metric column, skipping")
	}
	return summary, ok, nil
}

// RepoKey converts a full repository name to the CK directory key.
func RepoKey(fullName string) string {
	return strings.ReplaceAll(fullName, "/", "__")
}

// SummaryTable builds the summary table, left-joined with the repository
// metadata in meta when it is not nil. meta must have a full_name column.
func SummaryTable(summaries []domain.CKSummary, meta *report.Table) (*report.Table, error) {
	rows := make([][]string, len(summaries))
	for i, s := range summaries {
		rows[i] = s.Record()
	}
	table := report.NewTable(domain.CKSummaryColumns(), rows)
	if meta == nil {
		return table, nil
	}

	names, ok := meta.Strings("full_name")
	if !ok {
		return nil, errors.New("repository metadata has no full_name column")
	}
	keyed := make([][]string, len(meta.Rows))
	for i, row := range meta.Rows {
		padded := make([]string, len(meta.Header))
		copy(padded, row)
		keyed[i] = append(padded, RepoKey(names[i]))
	}
	header := append(append([]string{}, meta.Header...), "repo_key")
	return table.LeftJoin(report.NewTable(header, keyed), "repo_key", "repo_key"), nil
}
